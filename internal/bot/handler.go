package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/Sushi-Neko-bot/internal/iris"
	"github.com/park285/Sushi-Neko-bot/internal/leaderboard"
	"github.com/park285/Sushi-Neko-bot/internal/obslog"
	"github.com/park285/Sushi-Neko-bot/internal/session"
	"go.uber.org/zap"
)

// Board is what the command layer reads from the leaderboard.
type Board interface {
	Top(ctx context.Context, n int) ([]leaderboard.Entry, error)
	Best(ctx context.Context, name string) (int, bool, error)
}

type Messages interface {
	Text(key string, data any, fallback string) string
}

type Options struct {
	Prefix          string
	AllowedRooms    []string
	LeaderboardSize int
}

// Handler maps chat commands onto the session hub.
type Handler struct {
	prefix  string
	allowed map[string]struct{}
	size    int

	hub   *session.Hub
	board Board
	msgs  Messages
	out   session.Output

	wg sync.WaitGroup
}

func NewHandler(opts Options, hub *session.Hub, board Board, msgs Messages, out session.Output) *Handler {
	h := &Handler{
		prefix: opts.Prefix,
		size:   opts.LeaderboardSize,
		hub:    hub,
		board:  board,
		msgs:   msgs,
		out:    out,
	}
	if h.size <= 0 {
		h.size = leaderboard.DefaultTopN
	}
	if len(opts.AllowedRooms) > 0 {
		h.allowed = make(map[string]struct{}, len(opts.AllowedRooms))
		for _, r := range opts.AllowedRooms {
			h.allowed[r] = struct{}{}
		}
	}
	return h
}

// RoomAllowed reports whether room passes the ALLOWED_ROOMS filter; an empty filter allows all.
func (h *Handler) RoomAllowed(room string) bool {
	if h.allowed == nil {
		return true
	}
	_, ok := h.allowed[room]
	return ok
}

// HandleMessage handles msg to completion on the calling goroutine.
func (h *Handler) HandleMessage(ctx context.Context, msg *iris.Message) {
	room, player, cmd, ok := h.accept(msg)
	if !ok {
		return
	}
	if follow := h.plan(room, player, cmd); follow != nil {
		h.finish(ctx, room, player, cmd, follow(ctx))
	}
}

// Ingest is the WebSocket callback body. Game input is queued before it returns, so
// one player's messages reach their game in arrival order; replies and leaderboard
// reads continue on a goroutine tracked by Wait.
func (h *Handler) Ingest(ctx context.Context, msg *iris.Message) {
	room, player, cmd, ok := h.accept(msg)
	if !ok {
		return
	}
	follow := h.plan(room, player, cmd)
	if follow == nil {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.finish(ctx, room, player, cmd, follow(ctx))
	}()
}

// Wait blocks until replies started by Ingest are done or ctx expires.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) accept(msg *iris.Message) (room string, p session.Player, cmd Command, ok bool) {
	if msg == nil || strings.TrimSpace(msg.Msg) == "" {
		return "", p, cmd, false
	}
	cmd, ok = Parse(h.prefix, msg.Msg)
	if !ok {
		return "", p, cmd, false
	}
	if !h.RoomAllowed(msg.Room) {
		obslog.L().Debug("sushi_room_ignored", zap.String("room", msg.Room))
		return "", p, cmd, false
	}
	p = session.Player{ID: msg.UserID(), Name: msg.SenderName()}
	if p.ID == "" {
		return "", p, cmd, false
	}
	return msg.Room, p, cmd, true
}

type followUp func(ctx context.Context) error

// plan applies game input to the hub right away (only channel sends, never I/O) and
// returns whatever reply work remains, or nil.
func (h *Handler) plan(room string, p session.Player, cmd Command) followUp {
	var err error
	switch cmd.Action {
	case ActionStart:
		var created bool
		if _, created, err = h.hub.Start(room, p); err == nil {
			if created {
				return nil
			}
			return func(ctx context.Context) error { return h.status(ctx, room, p) }
		}
	case ActionTap:
		err = h.hub.Tap(room, p.ID, cmd.Sides...)
	case ActionRestart:
		err = h.hub.Restart(room, p.ID)
	case ActionQuit:
		err = h.hub.Quit(room, p.ID)
	default:
		return func(ctx context.Context) error { return h.reply(ctx, room, p, cmd) }
	}
	if err == nil {
		return nil
	}
	return func(ctx context.Context) error { return h.noSession(ctx, room, err) }
}

func (h *Handler) finish(ctx context.Context, room string, p session.Player, cmd Command, err error) {
	if err == nil {
		return
	}
	obslog.L().Warn("sushi_command_failed",
		zap.String("room", room),
		zap.String("player_id", p.ID),
		zap.String("raw", cmd.Raw),
		zap.Error(err))
	h.say(ctx, room, "sushi.error", nil, "처리 중 오류가 발생했습니다.")
}

func (h *Handler) reply(ctx context.Context, room string, p session.Player, cmd Command) error {
	switch cmd.Action {
	case ActionStatus:
		return h.status(ctx, room, p)
	case ActionTop:
		return h.top(ctx, room)
	case ActionBest:
		return h.best(ctx, room, p)
	case ActionHelp:
		h.say(ctx, room, "sushi.help", nil, "!sushi start")
		return nil
	default:
		h.say(ctx, room, "sushi.unknown", nil, "알 수 없는 명령입니다.")
		return nil
	}
}

func (h *Handler) noSession(ctx context.Context, room string, err error) error {
	if errors.Is(err, session.ErrNoSession) {
		h.say(ctx, room, "sushi.no_session", nil, "진행 중인 게임이 없습니다.")
		return nil
	}
	return err
}

func (h *Handler) status(ctx context.Context, room string, p session.Player) error {
	sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st, err := h.hub.Status(sctx, room, p.ID)
	if err != nil {
		return h.noSession(ctx, room, err)
	}
	h.say(ctx, room, "sushi.status", map[string]any{
		"Player": displayName(p),
		"State":  string(st.State),
		"Score":  st.Score,
		"Health": st.HealthPercent(),
	}, fmt.Sprintf("%s %d", st.State, st.Score))
	return nil
}

func (h *Handler) top(ctx context.Context, room string) error {
	if h.board == nil {
		h.say(ctx, room, "sushi.leaderboard.empty", nil, "아직 랭킹이 없습니다.")
		return nil
	}
	entries, err := h.board.Top(ctx, h.size)
	if err != nil {
		return fmt.Errorf("leaderboard top: %w", err)
	}
	if len(entries) == 0 {
		h.say(ctx, room, "sushi.leaderboard.empty", nil, "아직 랭킹이 없습니다.")
		return nil
	}
	rows := make([]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, h.text("sushi.leaderboard.row",
			map[string]any{"Rank": i + 1, "Name": e.Name, "Score": e.Score},
			fmt.Sprintf("%d. %s - %d", i+1, e.Name, e.Score)))
	}
	title := h.text("sushi.leaderboard.title", nil, "랭킹")
	return h.out.Text(ctx, room, foldLong(title, strings.Join(rows, "\n")))
}

func (h *Handler) best(ctx context.Context, room string, p session.Player) error {
	name := displayName(p)
	if h.board == nil {
		h.say(ctx, room, "sushi.no_best", map[string]any{"Player": name}, "기록이 없습니다.")
		return nil
	}
	score, ok, err := h.board.Best(ctx, name)
	if err != nil {
		return fmt.Errorf("leaderboard best: %w", err)
	}
	if !ok {
		h.say(ctx, room, "sushi.no_best", map[string]any{"Player": name}, "기록이 없습니다.")
		return nil
	}
	h.say(ctx, room, "sushi.best", map[string]any{"Player": name, "Score": score}, fmt.Sprintf("%s: %d", name, score))
	return nil
}

func (h *Handler) say(ctx context.Context, room, key string, data map[string]any, fallback string) {
	if err := h.out.Text(ctx, room, h.text(key, data, fallback)); err != nil {
		obslog.L().Warn("sushi_output_failed", zap.String("room", room), zap.Error(err))
	}
}

func (h *Handler) text(key string, data map[string]any, fallback string) string {
	if h.msgs == nil {
		return fallback
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Prefix"] = h.prefix
	return h.msgs.Text(key, data, fallback)
}

// leaderboard rows are keyed by display name, matching what a game submits
func displayName(p session.Player) string {
	if strings.TrimSpace(p.Name) != "" {
		return strings.TrimSpace(p.Name)
	}
	return p.ID
}
