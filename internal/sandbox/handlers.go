package sandbox

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// APIError is the partner API's plain JSON error body
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errType, message string) {
	respondJSON(w, status, APIError{Type: errType, Message: message})
}

// HealthCheck reports the sandbox and its IV source
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	result, err := s.rng.HealthCheck()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "rng_unavailable", err.Error())
		return
	}

	status := http.StatusOK
	state := "healthy"
	if !result.Healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	samples, bytes := s.rng.Stats()

	respondJSON(w, status, map[string]interface{}{
		"status":  state,
		"clients": len(s.keys),
		"rng": map[string]interface{}{
			"health":            result,
			"samples_generated": samples,
			"bytes_generated":   bytes,
		},
		"event_subscribers": s.hub.Subscribers(),
	})
}

// ListFixtures returns registered fixtures
func (s *Server) ListFixtures(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.fixtures.List())
}

// PutFixture registers one fixture or a list of them
func (s *Server) PutFixture(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var fixtures []Fixture
	if len(raw) > 0 && raw[0] == '[' {
		if err := decodeNumbers(raw, &fixtures); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	} else {
		var f Fixture
		if err := decodeNumbers(raw, &f); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		fixtures = []Fixture{f}
	}

	for i := range fixtures {
		if err := fixtures[i].Validate(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_fixture", err.Error())
			return
		}
	}
	for _, f := range fixtures {
		// Already validated
		_ = s.fixtures.Put(f)
	}

	respondJSON(w, http.StatusCreated, fixtures)
}

// ClearFixtures removes every fixture
func (s *Server) ClearFixtures(w http.ResponseWriter, r *http.Request) {
	s.fixtures.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// decodeNumbers keeps reply numbers as json.Number so large integers survive
func decodeNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
