// Package sandbox is a local stand-in for the Pokepay partner API. It speaks
// the envelope protocol, so a real client can be pointed at it unchanged.
package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexbotov/pokepay-go/internal/metrics"
	"github.com/alexbotov/pokepay-go/internal/rng"
	"github.com/alexbotov/pokepay-go/pkg/envelope"
)

// DefaultMaxSkew bounds how far an envelope timestamp may drift from the
// sandbox clock
const DefaultMaxSkew = 5 * time.Minute

// Config holds sandbox settings
type Config struct {
	// Clients maps partner_client_id to its base64url shared key
	Clients map[string]string
	// AdminSecret signs admin tokens; the admin API is disabled when empty
	AdminSecret []byte
	// MaxSkew of zero disables the timestamp check
	MaxSkew time.Duration
	// Nonces defaults to an in-memory store
	Nonces NonceStore

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	RNG      *rng.Service
	Logger   *slog.Logger
}

// Server handles sandbox requests
type Server struct {
	keys        map[string]*envelope.Cipher
	adminSecret []byte
	maxSkew     time.Duration
	nonces      NonceStore
	fixtures    *FixtureTable
	hub         *Hub
	control     *Control
	rng         *rng.Service
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a sandbox server
func New(cfg Config) (*Server, error) {
	if len(cfg.Clients) == 0 {
		return nil, errors.New("sandbox: at least one client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rngSvc := cfg.RNG
	if rngSvc == nil {
		rngSvc = rng.New()
	}

	keys := make(map[string]*envelope.Cipher, len(cfg.Clients))
	for id, secret := range cfg.Clients {
		key, err := envelope.ParseKey(secret)
		if err != nil {
			return nil, fmt.Errorf("sandbox: client %s: %w", id, err)
		}
		keys[id] = envelope.NewCipher(key, envelope.WithEntropy(rngSvc))
	}

	nonces := cfg.Nonces
	if nonces == nil {
		nonces = NewMemoryNonceStore()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	hub := NewHub(m, logger)

	return &Server{
		keys:        keys,
		adminSecret: cfg.AdminSecret,
		maxSkew:     cfg.MaxSkew,
		nonces:      nonces,
		fixtures:    NewFixtureTable(),
		hub:         hub,
		control:     NewControl(hub, logger),
		rng:         rngSvc,
		metrics:     m,
		gatherer:    gatherer,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Fixtures returns the fixture table
func (s *Server) Fixtures() *FixtureTable {
	return s.fixtures
}

// Hub returns the event hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Control returns the traffic switches
func (s *Server) Control() *Control {
	return s.control
}

// Close disconnects event subscribers and releases the nonce store
func (s *Server) Close() error {
	s.hub.Close()
	return s.nonces.Close()
}

func (s *Server) nonceTTL() time.Duration {
	if s.maxSkew > 0 {
		return 2 * s.maxSkew
	}
	return 2 * DefaultMaxSkew
}
