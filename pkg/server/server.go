package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nepalcovid19/searchserve/internal/logger"
	"github.com/nepalcovid19/searchserve/internal/utils"
	"github.com/nepalcovid19/searchserve/pkg/config"
	"github.com/nepalcovid19/searchserve/pkg/search"
	"github.com/nepalcovid19/searchserve/pkg/widget"
)

// Searcher is the engine as seen by the transports.
type Searcher interface {
	Search(ctx context.Context, query string) search.Response
	Stats() map[string]int
}

// Reloader forces a refetch of the remote feed.
type Reloader interface {
	Refresh(ctx context.Context) error
}

// Server handles IPC for search suggestions
type Server struct {
	engine   Searcher
	reloader Reloader
	config   *config.Config
	dec      *msgpack.Decoder
	enc      *msgpack.Encoder
	log      *log.Logger
	requests int
}

// NewServer creates a server reading requests from r and writing responses to w.
// reloader may be nil, in which case the reload action is rejected.
func NewServer(engine Searcher, reloader Reloader, cfg *config.Config, r io.Reader, w io.Writer) *Server {
	return &Server{
		engine:   engine,
		reloader: reloader,
		config:   cfg,
		dec:      msgpack.NewDecoder(r),
		enc:      msgpack.NewEncoder(w),
		log:      logger.New("ipc"),
	}
}

// Start signals readiness and processes requests until EOF or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.log.Debug("starting IPC server")
	if err := s.enc.Encode(map[string]string{"status": "ready"}); err != nil {
		return fmt.Errorf("write ready: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		raw, err := s.dec.DecodeInterface()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug("client disconnected")
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
		s.requests++
		s.handle(ctx, raw)
	}
}

func (s *Server) handle(ctx context.Context, raw any) {
	msg, ok := raw.(map[string]any)
	if !ok {
		s.sendError("", fmt.Sprintf("request must be a map, got %T", raw), 400)
		return
	}

	id, _ := msg["id"].(string)
	if action, ok := msg["action"].(string); ok && action != "" {
		s.handleControl(ctx, ControlRequest{ID: id, Action: action})
		return
	}

	req := SearchRequest{ID: id}
	req.Query, _ = msg["q"].(string)
	req.Limit = toInt(msg["l"])
	s.handleSearch(ctx, req)
}

func (s *Server) handleSearch(ctx context.Context, req SearchRequest) {
	if err := search.ValidateQuery(req.Query, s.config.Server.MinQuery, s.config.Server.MaxQuery); err != nil {
		s.sendError(req.ID, err.Error(), 400)
		return
	}

	start := time.Now()
	var resp search.Response
	if !s.config.Server.EnableFilter || utils.IsValidInput(req.Query) {
		resp = s.engine.Search(ctx, req.Query)
	}
	elapsed := time.Since(start)

	results := resp.Results
	if results == nil {
		results = []search.Result{}
	}
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	s.log.Debug("search", "id", req.ID, "q", req.Query, "count", len(results), "took", elapsed)
	s.send(SearchResponse{
		ID:             req.ID,
		Results:        results,
		Count:          len(results),
		TimeTaken:      elapsed.Microseconds(),
		CorrectedQuery: resp.CorrectedQuery,
	})
}

func (s *Server) handleControl(ctx context.Context, req ControlRequest) {
	switch req.Action {
	case "stats":
		stats := s.engine.Stats()
		stats["ipcRequests"] = s.requests
		s.send(ControlResponse{ID: req.ID, Status: "ok", Stats: stats})
	case "suggestions":
		s.send(ControlResponse{ID: req.ID, Status: "ok", Suggestions: widget.QuickSuggestions()})
	case "reload":
		if s.reloader == nil {
			s.send(ControlResponse{ID: req.ID, Status: "error", Error: "no remote feed configured"})
			return
		}
		if err := s.reloader.Refresh(ctx); err != nil {
			s.send(ControlResponse{ID: req.ID, Status: "error", Error: err.Error()})
			return
		}
		s.send(ControlResponse{ID: req.ID, Status: "ok", Stats: s.engine.Stats()})
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown action: %s", req.Action), 400)
	}
}

func (s *Server) send(v any) {
	if err := s.enc.Encode(v); err != nil {
		s.log.Errorf("Encoding response: %v", err)
	}
}

func (s *Server) sendError(id, message string, code int) {
	s.log.Debug("request rejected", "id", id, "err", message)
	s.send(ErrorResponse{ID: id, Error: message, Code: code})
}

func toInt(v any) int {
	switch n := v.(type) {
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
