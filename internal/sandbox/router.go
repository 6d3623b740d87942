package sandbox

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the HTTP router
func (s *Server) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(RecoveryMiddleware)
	r.Use(s.LoggingMiddleware)

	// Public routes
	r.HandleFunc("/health", s.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// Admin routes
	admin := r.PathPrefix("/_sandbox").Subrouter()
	admin.Use(s.AdminMiddleware)
	admin.HandleFunc("/fixtures", s.ListFixtures).Methods("GET")
	admin.HandleFunc("/fixtures", s.PutFixture).Methods("POST")
	admin.HandleFunc("/fixtures", s.ClearFixtures).Methods("DELETE")
	admin.HandleFunc("/control", s.GetControl).Methods("GET")
	admin.HandleFunc("/control", s.SetControl).Methods("POST")
	admin.HandleFunc("/events", s.hub.ServeWS).Methods("GET")

	// Everything else is a partner call
	r.PathPrefix("/").HandlerFunc(s.PartnerCall).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(MethodNotAllowedHandler)

	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not_found", "resource not found")
}

// MethodNotAllowedHandler handles 405 errors
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "partner calls must be POST")
}
