package logging

import (
	"log/slog"
	"time"
)

// Common field names
const (
	FieldOperation = "operation"
	FieldCallID    = "partner_call_id"
	FieldClientID  = "partner_client_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldRemote    = "remote_addr"
)

// Operation returns a slog attribute for the partner operation name.
func Operation(name string) slog.Attr {
	return slog.String(FieldOperation, name)
}

// CallID returns a slog attribute for the partner call id.
func CallID(id string) slog.Attr {
	return slog.String(FieldCallID, id)
}

// ClientID returns a slog attribute for the partner client id.
func ClientID(id string) slog.Attr {
	return slog.String(FieldClientID, id)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Remote returns a slog attribute for the peer address.
func Remote(addr string) slog.Attr {
	return slog.String(FieldRemote, addr)
}
