package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/fuelops/fuelops-backend/api/responses"
	pkgerrors "github.com/fuelops/fuelops-backend/pkg/errors"
	"github.com/fuelops/fuelops-backend/pkg/logger"
	pkgredis "github.com/fuelops/fuelops-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = 2 * time.Minute

	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

// idempotencyTTLs lists the POST routes that require an Idempotency-Key.
// Money movements keep their record for a week so a late client retry of a
// collection or obligation can never post twice.
var idempotencyTTLs = map[string]time.Duration{
	"/api/v1/accounts/{accountId}/credit/authorize": defaultIdempotencyTTL,
	"/api/v1/accounts/{accountId}/recalculate":      defaultIdempotencyTTL,
	"/api/v1/accounts/{accountId}/auto-recover":     defaultIdempotencyTTL,
	"/api/v1/invoices/{invoiceId}/status":           defaultIdempotencyTTL,
	"/api/v1/accounts/{accountId}/collections":      criticalIdempotencyTTL,
	"/api/v1/accounts/{accountId}/obligations":      criticalIdempotencyTTL,
	"/api/v1/invoices/{invoiceId}/cash-ledger":      criticalIdempotencyTTL,
}

// Idempotency replays the first completed response for a key. The key is
// claimed with a pending marker before the handler runs, so a concurrent
// duplicate gets a 409 instead of a second ledger write. A 5xx releases
// the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		g := &idempotencyGuard{store: store, logg: logg}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next, ttl)
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if clientKey == "" {
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := g.store.IdempotencyKey(requestScope(r), clientKey)
	fingerprint := hashBody(body)

	claimed, err := g.claim(ctx, key, fingerprint)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
		return
	}
	if !claimed {
		g.replay(ctx, w, key, fingerprint)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	g.settle(ctx, key, fingerprint, capture, ttl)
}

func (g *idempotencyGuard) claim(ctx context.Context, key, fingerprint string) (bool, error) {
	marker, err := idempotencyRecord{Pending: true, RequestHash: fingerprint}.encode()
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, marker, inFlightTTL)
}

// settle stores the final response, or releases the claim after a 5xx.
// Failures here are logged only since the client already has its answer.
func (g *idempotencyGuard) settle(ctx context.Context, key, fingerprint string, capture *responseCapture, ttl time.Duration) {
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		g.logFailure(ctx, "release idempotency key", g.store.Del(ctx, key))
		return
	}

	record := idempotencyRecord{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		RequestHash: fingerprint,
	}
	payload, err := record.encode()
	if err != nil {
		g.logFailure(ctx, "encode idempotency record", err)
		return
	}
	g.logFailure(ctx, "persist idempotency record", g.store.Set(ctx, key, payload, ttl))
}

func (g *idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, key, fingerprint string) {
	stored, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Released between SetNX and Get: the first attempt ended in a 5xx.
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "previous request with this Idempotency-Key failed, retry"))
		return
	}
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	record, err := decodeRecord(stored)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}

	switch {
	case record.RequestHash != fingerprint:
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.Pending:
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key is still in progress"))
	default:
		record.writeTo(w)
	}
}

func (g *idempotencyGuard) fail(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, g.logg, w, err)
}

func (g *idempotencyGuard) logFailure(ctx context.Context, msg string, err error) {
	if g.logg != nil && err != nil {
		g.logg.Error(ctx, msg, err)
	}
}

// idempotencyRecord is the Redis value. A pending record only carries the
// request fingerprint. Body is base64 in JSON.
type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

func (rec idempotencyRecord) encode() (string, error) {
	b, err := json.Marshal(rec)
	return string(b), err
}

func decodeRecord(payload string) (idempotencyRecord, error) {
	var rec idempotencyRecord
	err := json.Unmarshal([]byte(payload), &rec)
	return rec, err
}

func (rec idempotencyRecord) writeTo(w http.ResponseWriter) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// requestScope keys records by the concrete path so the same
// Idempotency-Key used against two accounts never collides.
func requestScope(r *http.Request) string {
	return r.Method + "|" + r.URL.Path
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	ttl, ok := idempotencyTTLs[pattern]
	return ttl, ok
}

// responseCapture tees the handler's response into body.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
