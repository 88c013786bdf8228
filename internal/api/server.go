// Package api exposes the read-only browse interface over the indexed
// catalogue. Writing stays exclusive to the indexing commands.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scrapsama/scrapsama/internal/catalog"
)

// CatalogReader is the slice of the store the API needs.
type CatalogReader interface {
	SearchSeries(ctx context.Context, query string, limit int) ([]catalog.SeriesRecord, error)
	GetSeries(ctx context.Context, id int64) (catalog.SeriesRecord, error)
	ListSeasons(ctx context.Context, seriesID int64) ([]catalog.SeasonRecord, error)
	ListEpisodes(ctx context.Context, seasonID int64) ([]catalog.EpisodeRecord, error)
	ListPlayers(ctx context.Context, episodeID int64) ([]catalog.Player, error)
	ListRuns(ctx context.Context, limit int) ([]catalog.RunRecord, error)
}

// Server wires HTTP handlers to the catalogue reader.
type Server struct {
	router chi.Router
	reader CatalogReader
	log    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(reader CatalogReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{reader: reader, log: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/series", s.searchSeries)
		r.Route("/series/{series_id}", func(r chi.Router) {
			r.Get("/", s.getSeries)
			r.Get("/seasons", s.listSeasons)
		})
		r.Get("/seasons/{season_id}/episodes", s.listEpisodes)
		r.Get("/episodes/{episode_id}/players", s.listPlayers)
		r.Get("/runs", s.listRuns)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) searchSeries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	series, err := s.reader.SearchSeries(r.Context(), query, queryLimit(r, 50))
	if err != nil {
		s.serverError(w, "search series", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": emptyNotNil(series)})
}

func (s *Server) getSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "series_id")
	if !ok {
		return
	}
	serie, err := s.reader.GetSeries(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "series not found")
		return
	}
	if err != nil {
		s.serverError(w, "get series", err)
		return
	}
	writeJSON(w, http.StatusOK, serie)
}

func (s *Server) listSeasons(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "series_id")
	if !ok {
		return
	}
	seasons, err := s.reader.ListSeasons(r.Context(), id)
	if err != nil {
		s.serverError(w, "list seasons", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seasons": emptyNotNil(seasons)})
}

func (s *Server) listEpisodes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "season_id")
	if !ok {
		return
	}
	episodes, err := s.reader.ListEpisodes(r.Context(), id)
	if err != nil {
		s.serverError(w, "list episodes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"episodes": emptyNotNil(episodes)})
}

// playerView decorates a stored player with its language display data.
type playerView struct {
	catalog.Player
	LanguageName string `json:"language_name"`
	LanguageFlag string `json:"language_flag"`
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "episode_id")
	if !ok {
		return
	}
	players, err := s.reader.ListPlayers(r.Context(), id)
	if err != nil {
		s.serverError(w, "list players", err)
		return
	}
	views := make([]playerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView{
			Player:       p,
			LanguageName: catalog.LangName(p.Language),
			LanguageFlag: catalog.LangFlag(p.Language),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": views})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.reader.ListRuns(r.Context(), queryLimit(r, 20))
	if err != nil {
		s.serverError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": emptyNotNil(runs)})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+param)
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return def
	}
	return limit
}

// emptyNotNil keeps empty collections rendering as [] instead of null.
func emptyNotNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.log.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
