package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is ISO-8601 with microseconds and a numeric zone offset
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Plaintext is the JSON document sealed into the data field of every call
type Plaintext struct {
	RequestData   map[string]any `json:"request_data"`
	Timestamp     string         `json:"timestamp"`
	PartnerCallID string         `json:"partner_call_id"`
}

// NewPlaintext builds a fresh envelope for one call. A nil field map is sent
// as an empty object.
func NewPlaintext(fields map[string]any, loc *time.Location, now time.Time) Plaintext {
	if fields == nil {
		fields = map[string]any{}
	}
	return Plaintext{
		RequestData:   fields,
		Timestamp:     Timestamp(now, loc),
		PartnerCallID: NewCallID(),
	}
}

// Timestamp formats now in loc (UTC when loc is nil)
func Timestamp(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(TimestampLayout)
}

// NewCallID returns a random UUID v4 string
func NewCallID() string {
	return uuid.NewString()
}

// ParsePlaintext decodes and checks an opened request envelope
func ParsePlaintext(text string) (Plaintext, error) {
	var p Plaintext
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Plaintext{}, fmt.Errorf("invalid envelope json: %w", err)
	}
	if _, err := time.Parse(time.RFC3339Nano, p.Timestamp); err != nil {
		return Plaintext{}, fmt.Errorf("invalid envelope timestamp %q: %w", p.Timestamp, err)
	}
	id, err := uuid.Parse(p.PartnerCallID)
	if err != nil {
		return Plaintext{}, fmt.Errorf("invalid partner_call_id %q: %w", p.PartnerCallID, err)
	}
	if id.Version() != 4 {
		return Plaintext{}, fmt.Errorf("partner_call_id %q is not a v4 uuid", p.PartnerCallID)
	}
	if p.RequestData == nil {
		p.RequestData = map[string]any{}
	}
	return p, nil
}

// Seal serializes p and encrypts it with c
func (c *Cipher) Seal(p Plaintext) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return c.Encrypt(string(data))
}
