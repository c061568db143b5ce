package redis

import "strings"

const (
	keyNamespace      = "fuelops"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
)

// IdempotencyKey namespaces an idempotency record by route scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return Key(idempotencyPrefix, scope, id)
}

// LockKey namespaces a distributed job lock.
func (c *Client) LockKey(name string) string {
	return Key(lockPrefix, name)
}

// Key joins parts under the service namespace with ':'. Blank parts are
// dropped and surrounding whitespace trimmed, so "fuelops" is returned for
// no parts at all.
func Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
