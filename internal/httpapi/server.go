package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/park285/Sushi-Neko-bot/internal/history"
	"github.com/park285/Sushi-Neko-bot/internal/leaderboard"
	"github.com/park285/Sushi-Neko-bot/internal/obslog"
	"go.uber.org/zap"
)

type Board interface {
	Top(ctx context.Context, n int) ([]leaderboard.Entry, error)
}

type Runs interface {
	RecentRuns(ctx context.Context, playerID string, limit int) ([]*history.Run, error)
}

// SessionCounter reports live games for /healthz.
type SessionCounter interface {
	Len() int
}

// Server is the read-only HTTP surface: health, leaderboard, run history.
type Server struct {
	r        *chi.Mux
	board    Board
	runs     Runs
	sessions SessionCounter
	topN     int
}

func New(board Board, runs Runs, sessions SessionCounter, defaultTop int) *Server {
	if defaultTop <= 0 {
		defaultTop = leaderboard.DefaultTopN
	}
	s := &Server{r: chi.NewRouter(), board: board, runs: runs, sessions: sessions, topN: defaultTop}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(5 * time.Second))
	s.r.Use(jsonContentType)

	s.r.Get("/healthz", s.handleHealth)
	s.r.Get("/leaderboard", s.handleLeaderboard)
	s.r.Get("/players/{id}/runs", s.handleRuns)

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.r }

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	live := 0
	if s.sessions != nil {
		live = s.sessions.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": live})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.board == nil {
		writeError(w, http.StatusServiceUnavailable, "leaderboard_unavailable")
		return
	}
	limit, ok := parseLimit(r, s.topN, 100)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	entries, err := s.board.Top(r.Context(), limit)
	if err != nil {
		obslog.L().Warn("http_leaderboard_failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "leaderboard_error")
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type runDTO struct {
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	PlayerName string    `json:"player_name"`
	Score      int       `json:"score"`
	Taps       int       `json:"taps"`
	Cause      string    `json:"cause"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "history_unavailable")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_player")
		return
	}
	limit, ok := parseLimit(r, 10, 50)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	runs, err := s.runs.RecentRuns(r.Context(), id, limit)
	if err != nil {
		obslog.L().Warn("http_runs_failed", zap.String("player_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "history_error")
		return
	}
	out := make([]runDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, runDTO{
			ID:         run.ID,
			Room:       run.Room,
			PlayerName: run.PlayerName,
			Score:      run.Score,
			Taps:       run.Taps,
			Cause:      run.Cause,
			StartedAt:  run.StartedAt,
			EndedAt:    run.EndedAt,
			DurationMS: run.Duration.Milliseconds(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"player_id": id, "runs": out})
}

func parseLimit(r *http.Request, def, max int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
