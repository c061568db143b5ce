package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ExternalRefs carries opaque identifiers from payment gateways and banks
// (gateway order id, payment id, signature, bank reference). Stored as jsonb.
type ExternalRefs map[string]string

const (
	RefGatewayOrderID   = "gateway_order_id"
	RefGatewayPaymentID = "gateway_payment_id"
	RefGatewaySignature = "gateway_signature"
	RefBankReference    = "bank_reference"
)

func (r ExternalRefs) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *ExternalRefs) Scan(value interface{}) error {
	if value == nil {
		*r = ExternalRefs{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("external refs: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*r = ExternalRefs{}
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("external refs: %w", err)
	}
	*r = out
	return nil
}

// Compact drops empty values so absent references are not persisted.
func (r ExternalRefs) Compact() ExternalRefs {
	out := ExternalRefs{}
	for k, v := range r {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
