package sandbox

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alexbotov/pokepay-go/internal/logging"
	"github.com/alexbotov/pokepay-go/pkg/envelope"
	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

// Rejection reasons, used as metric labels and event reasons
const (
	ReasonBadForm       = "bad_form"
	ReasonUnknownClient = "unknown_client"
	ReasonBadMethod     = "bad_method"
	ReasonUndecryptable = "undecryptable"
	ReasonBadEnvelope   = "bad_envelope"
	ReasonStale         = "stale_timestamp"
	ReasonReplay        = "replay"
	ReasonNonceStore    = "nonce_store"
	ReasonDisabled      = "disabled"
	ReasonClientOff     = "client_disabled"
)

// PartnerCall opens an envelope, answers it from the fixtures or the built-in
// echo, and seals the reply
func (s *Server) PartnerCall(w http.ResponseWriter, r *http.Request) {
	method := r.PostFormValue("request_method")
	status := s.partnerCall(w, r, method)

	label := method
	if !pokepay.Method(method).Valid() {
		label = "invalid"
	}
	s.metrics.ObserveSandboxRequest(label, status)
}

func (s *Server) partnerCall(w http.ResponseWriter, r *http.Request, method string) int {
	if err := r.ParseForm(); err != nil {
		return s.reject(w, r, http.StatusBadRequest, ReasonBadForm, "invalid form body", "")
	}

	clientID := r.PostForm.Get("partner_client_id")
	cipher, ok := s.keys[clientID]
	if !ok {
		return s.reject(w, r, http.StatusForbidden, ReasonUnknownClient, "unknown partner_client_id", clientID)
	}
	switch err := s.control.CheckAccess(clientID); {
	case errors.Is(err, ErrSandboxDisabled):
		return s.reject(w, r, http.StatusServiceUnavailable, ReasonDisabled, err.Error(), clientID)
	case errors.Is(err, ErrClientDisabled):
		return s.reject(w, r, http.StatusForbidden, ReasonClientOff, err.Error(), clientID)
	}
	if !pokepay.Method(method).Valid() {
		return s.reject(w, r, http.StatusBadRequest, ReasonBadMethod, "invalid request_method", clientID)
	}

	text, err := cipher.Decrypt(r.PostForm.Get("data"))
	if err != nil {
		return s.reject(w, r, http.StatusBadRequest, ReasonUndecryptable, "data could not be decrypted", clientID)
	}
	plaintext, err := envelope.ParsePlaintext(text)
	if err != nil {
		return s.reject(w, r, http.StatusBadRequest, ReasonBadEnvelope, err.Error(), clientID)
	}

	if s.maxSkew > 0 {
		ts, _ := time.Parse(time.RFC3339Nano, plaintext.Timestamp)
		if skew := s.now().Sub(ts); skew > s.maxSkew || skew < -s.maxSkew {
			return s.reject(w, r, http.StatusBadRequest, ReasonStale, "timestamp outside the accepted window", clientID)
		}
	}

	fresh, err := s.nonces.Remember(r.Context(), clientID+":"+plaintext.PartnerCallID, s.nonceTTL())
	if err != nil {
		s.logger.Error("nonce store failed", logging.Error(err))
		return s.reject(w, r, http.StatusServiceUnavailable, ReasonNonceStore, "nonce store unavailable", clientID)
	}
	if !fresh {
		s.metrics.SandboxReplays.Inc()
		return s.reject(w, r, http.StatusConflict, ReasonReplay, "partner_call_id already used", clientID)
	}

	status, reply := s.answer(method, r.URL.Path, plaintext.RequestData)

	s.hub.Publish(Event{
		Type:          EventCall,
		ClientID:      clientID,
		PartnerCallID: plaintext.PartnerCallID,
		Method:        method,
		Path:          r.URL.Path,
		Status:        status,
		RequestData:   plaintext.RequestData,
	})

	if status < 200 || status > 299 {
		respondJSON(w, status, reply)
		return status
	}

	data, err := json.Marshal(reply)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to encode reply")
		return http.StatusInternalServerError
	}
	sealed, err := cipher.Encrypt(string(data))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to seal reply")
		return http.StatusInternalServerError
	}
	respondJSON(w, status, map[string]string{"response_data": sealed})
	return status
}

// answer picks the reply for one opened call
func (s *Server) answer(method, path string, requestData map[string]any) (int, any) {
	if f, ok := s.fixtures.Match(method, path); ok {
		return f.Status, f.Reply
	}
	if path == "/echo" && method == string(pokepay.MethodPost) {
		return http.StatusOK, map[string]any{
			"status":  "ok",
			"message": requestData["message"],
		}
	}
	return http.StatusNotFound, APIError{Type: "not_found", Message: "no fixture for " + method + " " + path}
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, status int, reason, message, clientID string) int {
	s.metrics.SandboxRejected.WithLabelValues(reason).Inc()
	s.hub.Publish(Event{
		Type:     EventRejected,
		ClientID: clientID,
		Path:     r.URL.Path,
		Status:   status,
		Reason:   reason,
	})
	respondError(w, status, reason, message)
	return status
}
