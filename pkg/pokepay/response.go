package pokepay

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Response is the outcome of one Send. When Decoded is false the call
// returned a non-2xx status and only the transport fields are populated.
type Response struct {
	TransportResult

	Operation     string `json:"operation"`
	Shape         string `json:"shape,omitempty"`
	Decoded       bool   `json:"decoded"`
	PartnerCallID string `json:"partner_call_id"`

	// Data is the full decrypted reply
	Data map[string]any `json:"data,omitempty"`
	// Fields is Data projected through the operation's shape
	Fields map[string]any `json:"fields,omitempty"`
}

// Err returns a *ProtocolError for a non-2xx result and nil otherwise
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	result := r.TransportResult
	return &ProtocolError{Result: &result}
}

// Get returns a projected field, falling back to the raw reply
func (r *Response) Get(name string) (any, bool) {
	if v, ok := r.Fields[name]; ok {
		return v, true
	}
	v, ok := r.Data[name]
	return v, ok
}

// String returns a field as a string, or "" if absent or not a string
func (r *Response) String(name string) string {
	v, _ := r.Get(name)
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return ""
}

// Int64 returns a numeric field as an int64
func (r *Response) Int64(name string) (int64, error) {
	v, ok := r.Get(name)
	if !ok {
		return 0, fmt.Errorf("field %s: %w", name, ErrMissingField)
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", name, err)
		}
		return int64(f), nil
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("field %s is %T, not a number", name, v)
}

// Float64 returns a numeric field as a float64
func (r *Response) Float64(name string) (float64, error) {
	v, ok := r.Get(name)
	if !ok {
		return 0, fmt.Errorf("field %s: %w", name, ErrMissingField)
	}
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("field %s is %T, not a number", name, v)
}

// Bool returns a boolean field, false if absent
func (r *Response) Bool(name string) bool {
	v, _ := r.Get(name)
	b, _ := v.(bool)
	return b
}

// Map returns a nested object field
func (r *Response) Map(name string) map[string]any {
	v, _ := r.Get(name)
	m, _ := v.(map[string]any)
	return m
}

// Slice returns an array field
func (r *Response) Slice(name string) []any {
	v, _ := r.Get(name)
	s, _ := v.([]any)
	return s
}

// DecodeInto re-encodes the raw reply into v
func (r *Response) DecodeInto(v any) error {
	if !r.Decoded {
		return r.Err()
	}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}
