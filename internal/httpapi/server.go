// Package httpapi exposes the health probe and the external moderation
// endpoints over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/kick"
	"tg_moderation_panel/internal/logging"
	"tg_moderation_panel/internal/risk"
)

const (
	mongoPingTimeout  = 2 * time.Second
	readHeaderTimeout = 2 * time.Second
	maxBodyBytes      = 64 << 10
	apiKeyHeader      = "X-API-Key"
	requestIDHeader   = "X-Request-ID"
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// DefinitionSource hands out the current external API snapshot.
type DefinitionSource interface {
	Snapshot() *externalapi.Snapshot
}

// Kicker runs a kick request for a matched definition.
type Kicker interface {
	Kick(ctx context.Context, def externalapi.KickDefinition, req kick.Request) (kick.Report, error)
}

// AccountLister loads accounts for risk checks.
type AccountLister interface {
	ListAccounts(ctx context.Context, accountIDs []int64) ([]domain.Account, error)
}

// RiskAssessor evaluates a batch of accounts.
type RiskAssessor interface {
	AssessBatch(accounts []domain.Account) risk.BatchResult
}

// Dependencies wires the server to the rest of the panel.
type Dependencies struct {
	Mongo       MongoChecker
	Definitions DefinitionSource
	Kicker      Kicker
	Accounts    AccountLister
	Risk        RiskAssessor
}

// Server hosts the API and owns the underlying HTTP server.
type Server struct {
	server *http.Server
	logger *logrus.Entry
	deps   Dependencies
}

// NewServer constructs a server listening on the provided port.
func NewServer(port int, deps Dependencies, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger: logger,
		deps:   deps,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("POST /api/kick", srv.withRequestID(srv.handleKick))
	mux.HandleFunc("POST /api/risk", srv.withRequestID(srv.handleRisk))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "http_listen",
		"addr":  s.server.Addr,
	}).Info("starting http server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server listen: %w", err)
	}

	s.logger.WithField("event", "http_stopped").Info("http server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

type requestHandler func(w http.ResponseWriter, r *http.Request, logger *logrus.Entry)

func (s *Server) withRequestID(next requestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set(requestIDHeader, requestID)

		logger := s.logger.WithFields(logging.Fields{
			"request_id": requestID,
			"path":       r.URL.Path,
		})
		next(w, r, logger)
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Mongo  string `json:"mongo,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}

	if s.deps.Mongo == nil {
		resp.Status, resp.Mongo = "degraded", "error"
		s.logger.WithField("event", "health_mongo_missing").Warn("mongo checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(r.Context(), mongoPingTimeout)
		err := s.deps.Mongo.Ping(pingCtx)
		cancel()

		if err != nil {
			resp.Status, resp.Mongo = "degraded", "error"
			s.logger.WithField("event", "health_mongo_error").WithError(err).Warn("mongo ping failed during health check")
		}
	}

	writeJSON(w, http.StatusOK, resp, s.logger)
}

func (s *Server) snapshot() *externalapi.Snapshot {
	if s.deps.Definitions == nil {
		return externalapi.NewSnapshot(nil)
	}
	return s.deps.Definitions.Snapshot()
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithField("event", "http_write_error").WithError(err).Error("failed to encode response")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(into); err != nil {
		return err
	}
	return nil
}
