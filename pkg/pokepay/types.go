package pokepay

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Method is the logical HTTP method of a partner operation, sent in the
// request_method form field
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// Valid reports whether m is a method the partner API understands
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// Defaults applied by NewClient
const (
	DefaultTimezone       = "Asia/Tokyo"
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = 5 * time.Second
)

// DefaultFieldAliases renames body fields at the transport boundary.
// "from" cannot be used as a keyword argument in some SDK languages, so
// callers pass "start" instead.
var DefaultFieldAliases = map[string]string{
	"start": "from",
}

// ClientConfig holds the configuration for the partner client
type ClientConfig struct {
	// ClientID is sent as partner_client_id on every call
	ClientID string
	// ClientSecret is the base64url shared key (16, 24 or 32 bytes decoded)
	ClientSecret string
	BaseURL      string

	// Timezone names the IANA zone used for envelope timestamps
	Timezone string

	// Timeout bounds the wait for the response (read timeout)
	Timeout        time.Duration
	ConnectTimeout time.Duration

	// Client certificate for mutual TLS; required when BaseURL is https.
	// Either a PEM pair or a PKCS#12 bundle.
	CertFile       string
	KeyFile        string
	PKCS12File     string
	PKCS12Password string

	// FieldAliases defaults to DefaultFieldAliases when nil
	FieldAliases map[string]string

	Observers []CallObserver
	Logger    *slog.Logger

	// Entropy is the IV source; defaults to the rng service over crypto/rand
	Entropy io.Reader
}

// DefaultConfig returns a configuration with the default zone and timeouts
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timezone:       DefaultTimezone,
		Timeout:        DefaultTimeout,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// TransportResult is what came back over HTTP for one call
type TransportResult struct {
	StatusCode int           `json:"status_code"`
	OK         bool          `json:"ok"`
	Header     http.Header   `json:"headers"`
	Elapsed    time.Duration `json:"elapsed"`
	URL        string        `json:"url"`
	Body       []byte        `json:"-"`
}

// CallRecord describes one dispatched call for observers
type CallRecord struct {
	Operation     string
	Method        Method
	Path          string
	PartnerCallID string
	StartedAt     time.Time
	Elapsed       time.Duration
	StatusCode    int
	OK            bool
	Err           error
}

// CallObserver is notified once per Send. Implementations must be safe for
// concurrent use and must not block for long.
type CallObserver interface {
	ObserveCall(rec CallRecord)
}

// CallObserverFunc adapts a function to CallObserver
type CallObserverFunc func(rec CallRecord)

// ObserveCall calls f(rec)
func (f CallObserverFunc) ObserveCall(rec CallRecord) {
	f(rec)
}
