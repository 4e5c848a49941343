package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"faultscope/internal/catalog"
	"faultscope/internal/config"
	"faultscope/internal/preflight"
	"faultscope/internal/store"
	"faultscope/internal/turn"
)

// Engine is the conversational surface the server fronts. The turn
// orchestrator satisfies it; tests substitute a stub.
type Engine interface {
	Execute(ctx context.Context, conversationID, text string) (*turn.Result, error)
	Catalog() *catalog.Catalog
}

// Server exposes the assistant over HTTP for external chat front ends.
type Server struct {
	cfg    *config.Config
	engine Engine
	store  *store.Store
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New assembles the HTTP server. The bind address and optional bearer
// token come from [paths] in the configuration.
func New(cfg *config.Config, engine Engine, st *store.Store, logger *slog.Logger) (*Server, error) {
	if cfg == nil || engine == nil {
		return nil, errors.New("server: config and engine are required")
	}
	if strings.TrimSpace(cfg.Paths.APIBind) == "" {
		return nil, errors.New("server: [paths].api_bind is empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	srv := &Server{
		cfg:    cfg,
		engine: engine,
		store:  st,
		logger: logger.With("component", "api-server"),
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/healthz", srv.handleHealthz)
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/catalog", authMiddleware(token, srv.handleCatalog))
	mux.HandleFunc("/api/turn", authMiddleware(token, srv.handleTurn))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down without waiting for the start context.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	checks := preflight.RunAll(r.Context(), s.cfg)
	payload := StatusResponse{Ready: preflight.Passed(checks)}
	for _, check := range checks {
		payload.Checks = append(payload.Checks, CheckStatus{
			Name:   check.Name,
			Passed: check.Passed,
			Detail: check.Detail,
		})
	}
	if s.store != nil {
		if health, err := s.store.Health(r.Context()); err == nil {
			payload.Turns = &TurnCounts{
				Total:     health.Total,
				Active:    health.Active,
				Completed: health.Completed,
				Failed:    health.Failed,
			}
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cat := s.engine.Catalog()
	if cat == nil {
		s.writeJSON(w, http.StatusOK, CatalogResponse{})
		return
	}

	payload := CatalogResponse{
		Root:        cat.Root(),
		Fingerprint: cat.Fingerprint(),
		Sessions:    cat.SessionCount(),
	}
	vocab := cat.Vocabulary()
	payload.SensorNames = vocab.SensorNames
	payload.SensorTypes = vocab.SensorTypes
	payload.Conditions = vocab.Conditions
	payload.FaultDetails = vocab.FaultDetails
	for _, label := range cat.Labels() {
		entry := LabelSummary{Label: label}
		for _, session := range cat.Sessions(label) {
			entry.Sessions = append(entry.Sessions, SessionSummary{
				ID:          session.ID,
				Condition:   session.Condition,
				FaultDetail: session.FaultDetail,
				Streams:     len(session.Streams),
			})
		}
		payload.Labels = append(payload.Labels, entry)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var request TurnRequest
	body := http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(request.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.engine.Execute(r.Context(), request.ConversationID, request.Text)
	if err != nil {
		s.logger.Error("turn execution unrecorded", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := TurnResponse{
		TurnID:         result.TurnID,
		RunID:          result.RunID,
		ConversationID: result.ConversationID,
		State:          string(result.State),
		Operation:      string(result.Operation),
		Flag:           result.Flag,
		Response:       result.Response,
		Degraded:       result.Degraded,
		ErrorCode:      result.ErrorCode,
		ErrorMessage:   result.ErrorMessage,
		Artifact:       result.Artifact,
	}
	if result.Clarification != nil {
		payload.Clarification = result.Clarification.Flag
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
