// Package web serves search suggestions over HTTP: a JSON API for the site's
// search box and a rendered HTML fragment of the widget.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"

	"github.com/nepalcovid19/searchserve/internal/logger"
	"github.com/nepalcovid19/searchserve/internal/utils"
	"github.com/nepalcovid19/searchserve/pkg/config"
	"github.com/nepalcovid19/searchserve/pkg/search"
	"github.com/nepalcovid19/searchserve/pkg/server"
	"github.com/nepalcovid19/searchserve/pkg/widget"
)

// SearchResponse is the JSON body of /api/search.
type SearchResponse struct {
	Query           string          `json:"query"`
	Results         []search.Result `json:"results"`
	Count           int             `json:"count"`
	TimeTaken       int64           `json:"time_ms"`
	CorrectedQuery  string          `json:"corrected_query,omitempty"`
	EssentialsReady bool            `json:"essentials_ready"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Server is the HTTP transport.
type Server struct {
	engine  server.Searcher
	config  *config.Config
	limiter *rate.Limiter
	router  *httprouter.Router
	log     *log.Logger
}

// New builds the router. A non-positive rate limit disables limiting.
func New(engine server.Searcher, cfg *config.Config) *Server {
	s := &Server{
		engine: engine,
		config: cfg,
		router: httprouter.New(),
		log:    logger.New("web"),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), max(cfg.Server.RateBurst, 1))
	}

	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/api/search", s.limited(s.handleAPISearch))
	s.router.GET("/api/suggestions", s.handleSuggestions)
	s.router.GET("/api/stats", s.handleStats)
	s.router.GET("/search", s.limited(s.handleWidget))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.router.ServeHTTP(w, r)
	s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) limited(h httprouter.Handle) httprouter.Handle {
	if s.limiter == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !s.limiter.Allow() {
			s.sendError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		h(w, r, ps)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.sendJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleSuggestions(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.sendJSON(w, http.StatusOK, widget.QuickSuggestions())
}

func (s *Server) handleAPISearch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query().Get("q")
	if msg := s.validate(query); msg != "" {
		s.sendError(w, msg, http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.sendError(w, "invalid 'limit' parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	start := time.Now()
	resp := s.run(r.Context(), query)
	elapsed := time.Since(start)

	results := resp.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	s.sendJSON(w, http.StatusOK, SearchResponse{
		Query:           query,
		Results:         results,
		Count:           len(results),
		TimeTaken:       elapsed.Milliseconds(),
		CorrectedQuery:  resp.CorrectedQuery,
		EssentialsReady: resp.EssentialsReady,
	})
}

// handleWidget renders the widget for ?q=. An empty query renders the
// expanded shortcut panel, as when the box first gains focus.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query().Get("q")
	st := widget.State{Value: query, Expanded: query == "" || r.URL.Query().Has("expand")}

	if query != "" {
		if msg := s.validate(query); msg != "" {
			s.sendError(w, msg, http.StatusBadRequest)
			return
		}
		resp := s.run(r.Context(), query)
		st.Results = resp.Results
		st.CorrectedQuery = resp.CorrectedQuery
	}

	var buf bytes.Buffer
	if err := widget.Render(&buf, st); err != nil {
		s.log.Errorf("Rendering widget: %v", err)
		s.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// run applies the input filter and searches the lower-cased query.
func (s *Server) run(ctx context.Context, query string) search.Response {
	if s.config.Server.EnableFilter && !utils.IsValidInput(query) {
		return search.Response{Query: query, Results: []search.Result{}}
	}
	resp := s.engine.Search(ctx, query)
	if resp.Results == nil {
		resp.Results = []search.Result{}
	}
	return resp
}

func (s *Server) validate(query string) string {
	if err := search.ValidateQuery(query, s.config.Server.MinQuery, s.config.Server.MaxQuery); err != nil {
		return err.Error()
	}
	return ""
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Errorf("Marshaling response: %v", err)
		http.Error(w, `{"error":"internal server error","status":500}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	s.sendJSON(w, status, ErrorResponse{Error: message, Status: status})
}
