package sandbox

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

var (
	ErrSandboxDisabled = errors.New("sandbox is currently disabled")
	ErrClientDisabled  = errors.New("partner client is disabled")
)

// Suspension records who switched something off and why
type Suspension struct {
	Reason string    `json:"reason,omitempty"`
	By     string    `json:"by,omitempty"`
	At     time.Time `json:"at"`
}

// ControlStatus is the current switch state
type ControlStatus struct {
	Enabled         bool                  `json:"enabled"`
	Disabled        *Suspension           `json:"disabled,omitempty"`
	DisabledClients map[string]Suspension `json:"disabled_clients"`
}

// Control switches partner traffic off for the whole sandbox or for single
// clients. Every change is logged and published on the event hub.
type Control struct {
	mu              sync.RWMutex
	disabled        *Suspension
	disabledClients map[string]Suspension

	hub    *Hub
	logger *slog.Logger
	now    func() time.Time
}

// NewControl creates a control with all traffic enabled
func NewControl(hub *Hub, logger *slog.Logger) *Control {
	return &Control{
		disabledClients: make(map[string]Suspension),
		hub:             hub,
		logger:          logger,
		now:             time.Now,
	}
}

// DisableAll rejects every partner call until EnableAll
func (c *Control) DisableAll(reason, by string) {
	c.mu.Lock()
	c.disabled = &Suspension{Reason: reason, By: by, At: c.now().UTC()}
	c.mu.Unlock()

	c.logger.Warn("sandbox disabled", "reason", reason, "by", by)
	c.publish("", "disabled")
}

// EnableAll resumes partner traffic
func (c *Control) EnableAll(by string) {
	c.mu.Lock()
	c.disabled = nil
	c.mu.Unlock()

	c.logger.Info("sandbox enabled", "by", by)
	c.publish("", "enabled")
}

// DisableClient rejects calls from one partner client
func (c *Control) DisableClient(clientID, reason, by string) {
	c.mu.Lock()
	c.disabledClients[clientID] = Suspension{Reason: reason, By: by, At: c.now().UTC()}
	c.mu.Unlock()

	c.logger.Warn("partner client disabled", "partner_client_id", clientID, "reason", reason, "by", by)
	c.publish(clientID, "client_disabled")
}

// EnableClient lifts a client suspension
func (c *Control) EnableClient(clientID, by string) {
	c.mu.Lock()
	delete(c.disabledClients, clientID)
	c.mu.Unlock()

	c.logger.Info("partner client enabled", "partner_client_id", clientID, "by", by)
	c.publish(clientID, "client_enabled")
}

func (c *Control) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disabled == nil
}

func (c *Control) IsClientEnabled(clientID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, off := c.disabledClients[clientID]
	return !off
}

// CheckAccess combines the sandbox-wide and per-client switches
func (c *Control) CheckAccess(clientID string) error {
	if !c.IsEnabled() {
		return ErrSandboxDisabled
	}
	if !c.IsClientEnabled(clientID) {
		return ErrClientDisabled
	}
	return nil
}

// Status returns a copy of the current state
func (c *Control) Status() *ControlStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &ControlStatus{
		Enabled:         c.disabled == nil,
		DisabledClients: make(map[string]Suspension, len(c.disabledClients)),
	}
	if c.disabled != nil {
		d := *c.disabled
		status.Disabled = &d
	}
	for id, s := range c.disabledClients {
		status.DisabledClients[id] = s
	}
	return status
}

// DisabledClientIDs returns suspended client ids in order
func (s *ControlStatus) DisabledClientIDs() []string {
	ids := make([]string, 0, len(s.DisabledClients))
	for id := range s.DisabledClients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Control) publish(clientID, action string) {
	if c.hub == nil {
		return
	}
	c.hub.Publish(Event{Type: EventControl, ClientID: clientID, Reason: action})
}

// ControlRequest is the body of POST /_sandbox/control
type ControlRequest struct {
	// Action is "disable" or "enable"
	Action string `json:"action"`
	// ClientID limits the action to one client; empty means the whole sandbox
	ClientID string `json:"partner_client_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// GetControl returns the switch state
func (s *Server) GetControl(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.control.Status())
}

// SetControl applies a ControlRequest on behalf of the token subject
func (s *Server) SetControl(w http.ResponseWriter, r *http.Request) {
	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ClientID != "" {
		if _, ok := s.keys[req.ClientID]; !ok {
			respondError(w, http.StatusNotFound, "not_found", "unknown partner_client_id")
			return
		}
	}

	by := adminSubject(r.Context())
	switch {
	case req.Action == "disable" && req.ClientID == "":
		s.control.DisableAll(req.Reason, by)
	case req.Action == "enable" && req.ClientID == "":
		s.control.EnableAll(by)
	case req.Action == "disable":
		s.control.DisableClient(req.ClientID, req.Reason, by)
	case req.Action == "enable":
		s.control.EnableClient(req.ClientID, by)
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", `action must be "disable" or "enable"`)
		return
	}

	respondJSON(w, http.StatusOK, s.control.Status())
}
