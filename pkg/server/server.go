// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/switchboard/pkg/models"
)

const maxBodySize = 1 << 20

// Handler answers a query. It must always return a response.
type Handler interface {
	Handle(ctx context.Context, req models.QueryRequest) models.QueryResponse
}

// Server is the switchboard HTTP service.
type Server struct {
	listen  string
	handler Handler
	origins []string
	logger  *slog.Logger
	mux     *http.ServeMux
	now     func() time.Time
}

// New creates a Server that serves h on listen. Browser requests are
// accepted from origins; "*" allows any origin.
func New(listen string, h Handler, origins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		listen:  listen,
		handler: h,
		origins: origins,
		logger:  logger,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.mux.HandleFunc("/query", s.handleQuery)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		s.mux.ServeHTTP(w, r)
		return
	}

	preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
	w.Header().Add("Vary", "Origin")
	if !s.allowOrigin(origin) {
		if preflight {
			writeJSONError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		s.mux.ServeHTTP(w, r)
		return
	}

	// Credentials are allowed, so the origin is echoed instead of "*".
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	if !preflight {
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Switchboard-Cache")
		s.mux.ServeHTTP(w, r)
		return
	}

	w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
	if h := r.Header.Get("Access-Control-Request-Headers"); h != "" {
		w.Header().Set("Access-Control-Allow-Headers", h)
	}
	w.Header().Set("Access-Control-Max-Age", "600")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) allowOrigin(origin string) bool {
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("switchboard listening", "addr", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	start := s.now()
	var resp models.QueryResponse

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	switch {
	case err != nil:
		resp = s.badRequest(fmt.Sprintf("read body: %v", err))
	case len(body) > maxBodySize:
		resp = s.badRequest("request body too large")
	default:
		var req models.QueryRequest
		if err := json.Unmarshal(body, &req); err != nil {
			resp = s.badRequest(fmt.Sprintf("invalid JSON: %v", err))
		} else {
			req.RequestID = requestID
			resp = s.handler.Handle(r.Context(), req)
		}
	}

	if resp.Cached {
		w.Header().Set("X-Switchboard-Cache", "hit")
	} else {
		w.Header().Set("X-Switchboard-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, resp)

	s.logger.Info("query",
		"request_id", requestID,
		"cached", resp.Cached,
		"failed", resp.Error != nil,
		"latency", s.now().Sub(start))
}

// badRequest reports undecodable input in the regular response envelope.
func (s *Server) badRequest(msg string) models.QueryResponse {
	msg = "PlanningError: " + msg
	return models.QueryResponse{
		Sources:   []string{},
		Timestamp: s.now().UTC(),
		Error:     &msg,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"switchboard_error","code":%d}}`, message, code)
}
