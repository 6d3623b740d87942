package pokepay

import (
	"errors"
	"fmt"

	"github.com/alexbotov/pokepay-go/pkg/envelope"
)

// Sentinel errors
var (
	ErrMissingField        = errors.New("missing field")
	ErrMissingResponseData = errors.New("response_data missing from server envelope")
	ErrUnknownOperation    = errors.New("unknown operation")
)

// DecryptionError is returned when response_data cannot be decrypted
type DecryptionError = envelope.DecryptionError

// Error kinds reported by ErrorKind
const (
	KindConfig         = "config"
	KindTransport      = "transport"
	KindProtocol       = "protocol"
	KindEnvelopeFormat = "envelope_format"
	KindDecryption     = "decryption"
	KindShape          = "shape"
	KindParam          = "param"
	KindOther          = "other"
)

// ConfigError reports a missing or invalid configuration field
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("pokepay: invalid config %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed HTTP exchange: refused connection, TLS
// handshake failure, timeout or a broken body read
type TransportError struct {
	Op      string
	URL     string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("pokepay: %s %s: timeout: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("pokepay: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError wraps a non-2xx result. Send returns such results as data;
// Response.Err converts them into this error.
type ProtocolError struct {
	Result *TransportResult
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pokepay: %s returned HTTP %d", e.Result.URL, e.Result.StatusCode)
}

// Envelope stages for EnvelopeFormatError
const (
	StageRequest  = "request"  // serializing the outgoing plaintext
	StageResponse = "response" // parsing the server's outer JSON
	StageReply    = "reply"    // parsing the decrypted reply
)

// EnvelopeFormatError reports JSON that could not be built or parsed on either
// side of the envelope, or a server envelope without response_data
type EnvelopeFormatError struct {
	Stage string
	Err   error
}

func (e *EnvelopeFormatError) Error() string {
	return fmt.Sprintf("pokepay: malformed %s envelope: %v", e.Stage, e.Err)
}

func (e *EnvelopeFormatError) Unwrap() error {
	return e.Err
}

// ShapeError reports a decoded reply missing a field its shape requires
type ShapeError struct {
	Shape string
	Field string
	Path  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("pokepay: %s: field %s (%s) missing from reply", e.Shape, e.Field, e.Path)
}

func (e *ShapeError) Unwrap() error {
	return ErrMissingField
}

// ParamError reports a request that cannot be built from the given params
type ParamError struct {
	Operation string
	Param     string
	Reason    string
	Err       error
}

func (e *ParamError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("pokepay: %s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("pokepay: %s: param %q %s", e.Operation, e.Param, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies err into one of the Kind constants ("" for nil)
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var (
		configErr    *ConfigError
		keyErr       *envelope.KeyError
		transportErr *TransportError
		protocolErr  *ProtocolError
		formatErr    *EnvelopeFormatError
		decryptErr   *envelope.DecryptionError
		shapeErr     *ShapeError
		paramErr     *ParamError
	)
	switch {
	case errors.As(err, &configErr), errors.As(err, &keyErr):
		return KindConfig
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &protocolErr):
		return KindProtocol
	case errors.As(err, &formatErr):
		return KindEnvelopeFormat
	case errors.As(err, &decryptErr):
		return KindDecryption
	case errors.As(err, &shapeErr):
		return KindShape
	case errors.As(err, &paramErr):
		return KindParam
	default:
		return KindOther
	}
}
