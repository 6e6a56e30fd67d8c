package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Sushi-Neko-bot/internal/history"
	"github.com/park285/Sushi-Neko-bot/internal/leaderboard"
	"github.com/park285/Sushi-Neko-bot/internal/match"
	"github.com/park285/Sushi-Neko-bot/internal/obslog"
	"github.com/park285/Sushi-Neko-bot/internal/render"
	"github.com/park285/Sushi-Neko-bot/internal/tower"
	"go.uber.org/zap"
)

type cmdKind int

const (
	cmdTap cmdKind = iota + 1
	cmdRestart
	cmdStatus
	cmdQuit
	cmdPrimed
)

type command struct {
	kind   cmdKind
	sides  []tower.Side
	primed *primeResult
	reply  chan Status
}

type primeResult struct {
	profile match.Profile
	entries []leaderboard.Entry
}

// Game drives one controller. Everything that touches ctrl runs on the run goroutine.
type Game struct {
	id     string
	key    Key
	player Player
	hub    *Hub

	cmds chan command
	done chan struct{}

	// loop-owned
	ctrl      *match.Controller
	events    []match.Event
	badges    *leaderboard.Badges
	lastSide  tower.Side
	taps      int
	runStart  time.Time
	createdAt time.Time
}

func newGame(h *Hub, key Key, p Player) *Game {
	g := &Game{
		id:        uuid.NewString(),
		key:       key,
		player:    p,
		hub:       h,
		cmds:      make(chan command, 32),
		done:      make(chan struct{}),
		lastSide:  tower.Left,
		createdAt: time.Now(),
	}
	t := tower.NewManager(h.deps.NewSource())
	g.ctrl = match.NewController(h.cfg.Match, t, match.ListenerFunc(func(ev match.Event) {
		g.events = append(g.events, ev)
	}))
	return g
}

func (g *Game) ID() string { return g.id }

// Done is closed when the loop exits.
func (g *Game) Done() <-chan struct{} { return g.done }

func (g *Game) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := g.send(command{kind: cmdStatus, reply: reply}); err != nil {
		return Status{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-g.done:
		return Status{}, ErrNoSession
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (g *Game) send(c command) error {
	select {
	case <-g.done:
		return ErrNoSession
	default:
	}
	select {
	case g.cmds <- c:
		return nil
	case <-g.done:
		return ErrNoSession
	}
}

func (g *Game) run(ctx context.Context) {
	defer g.hub.wg.Done()
	defer g.hub.remove(g)
	defer close(g.done)

	cfg := g.hub.cfg
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()
	idle := time.NewTimer(cfg.IdleTimeout)
	defer idle.Stop()

	g.say(ctx, "sushi.loading", map[string]any{"Player": g.player.Name}, "⏳ 준비 중...")
	g.hub.wg.Add(1)
	go func() {
		defer g.hub.wg.Done()
		g.prime(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.ctrl.State() != match.StatePlaying {
				continue
			}
			g.ctrl.OnTick(0)
			g.flush(ctx)
		case <-idle.C:
			obslog.L().Info("sushi_session_idle", zap.String("session_id", g.id), zap.String("room", g.key.Room))
			g.say(ctx, "sushi.idle", map[string]any{"Player": g.player.Name}, "게임이 종료되었습니다.")
			return
		case c := <-g.cmds:
			if c.kind != cmdStatus && c.kind != cmdPrimed {
				idle.Reset(cfg.IdleTimeout)
			}
			if quit := g.handle(ctx, c); quit {
				return
			}
		}
	}
}

func (g *Game) handle(ctx context.Context, c command) (quit bool) {
	switch c.kind {
	case cmdPrimed:
		g.onPrimed(ctx, c.primed)
	case cmdTap:
		g.onTaps(ctx, c.sides)
	case cmdRestart:
		if !g.ctrl.OnRestartPressed() {
			g.say(ctx, "sushi.not_ready", nil, "아직 재시작할 수 없습니다.")
			return false
		}
		g.taps = 0
		g.runStart = time.Time{}
		g.flush(ctx)
		g.sendReady(ctx)
	case cmdStatus:
		c.reply <- g.snapshot()
	case cmdQuit:
		g.say(ctx, "sushi.quit", map[string]any{"Score": g.ctrl.Score()}, fmt.Sprintf("종료 (%d점)", g.ctrl.Score()))
		return true
	}
	return false
}

func (g *Game) onPrimed(ctx context.Context, res *primeResult) {
	if res != nil {
		g.ctrl.SetProfile(&res.profile)
		g.badges = leaderboard.NewBadges(res.entries)
	}
	g.ctrl.OnReady()
	if g.hub.cfg.AutoStart {
		g.ctrl.OnStartPressed()
	}
	g.flush(ctx)
	if g.ctrl.State() == match.StateReady {
		g.sendReady(ctx)
		return
	}
	g.sendFrame(ctx, false)
}

func (g *Game) onTaps(ctx context.Context, sides []tower.Side) {
	if len(sides) == 0 {
		return
	}
	switch g.ctrl.State() {
	case match.StateLoading, match.StateTitle:
		g.say(ctx, "sushi.not_ready", nil, "아직 준비 중입니다.")
		return
	case match.StateGameOver:
		g.say(ctx, "sushi.restart_hint", nil, "restart 로 다시 시작하세요.")
		return
	}
	for _, side := range sides {
		if _, err := g.ctrl.OnDirectionalInput(side); err != nil {
			break
		}
		g.taps++
		g.lastSide = side
	}
	if over := g.flush(ctx); over {
		return
	}
	hp := percent(g.ctrl.Health())
	g.say(ctx, "sushi.hit", map[string]any{"Score": g.ctrl.Score(), "Health": hp},
		fmt.Sprintf("점수 %d · 체력 %d%%", g.ctrl.Score(), hp))
	g.sendFrame(ctx, false)
}

// flush drains controller events queued during the last call. It reports whether the
// run ended; the game-over output is already sent in that case.
func (g *Game) flush(ctx context.Context) (over bool) {
	events := g.events
	g.events = nil

	var collided bool
	var high *match.Event
	for i := range events {
		ev := events[i]
		switch ev.Type {
		case match.EventStateChanged:
			if ev.To == match.StatePlaying && g.runStart.IsZero() {
				g.runStart = time.Now()
			}
			if ev.To == match.StateGameOver {
				over = true
			}
		case match.EventCollision:
			collided = true
		case match.EventHighScore:
			high = &events[i]
		}
	}
	if !over {
		return false
	}
	g.onGameOver(ctx, collided, high)
	return true
}

func (g *Game) onGameOver(ctx context.Context, collided bool, high *match.Event) {
	score, cause := g.ctrl.Score(), g.ctrl.Cause()
	obslog.L().Info("sushi_game_over",
		zap.String("session_id", g.id),
		zap.String("room", g.key.Room),
		zap.String("player_id", g.player.ID),
		zap.Int("score", score),
		zap.String("cause", string(cause)),
		zap.Int("taps", g.taps))

	key := "sushi.game_over.timeout"
	if cause == match.CauseCollision {
		key = "sushi.game_over.collision"
	}
	msg := g.hub.text(key, map[string]any{"Score": score}, fmt.Sprintf("게임 오버! %d점", score))
	if high != nil {
		msg += "\n" + g.hub.text("sushi.high_score", map[string]any{"Player": g.player.Name, "Score": score},
			fmt.Sprintf("새 최고 기록 %d점!", score))
		g.submit(high.Profile)
	}
	msg += "\n" + g.hub.text("sushi.restart_hint", nil, "restart 로 다시 시작하세요.")
	g.sendText(ctx, msg)
	g.sendFrame(ctx, collided)
	g.saveRun(score, cause)
}

// submit writes the new best without blocking the loop.
func (g *Game) submit(p match.Profile) {
	lb := g.hub.deps.Leaderboard
	if lb == nil {
		return
	}
	name := g.player.Name
	rec := leaderboard.Record{Image: p.ImageURL, Score: p.Score, ID: p.ExternalID}
	timeout := g.hub.cfg.SubmitTimeout
	g.hub.background(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := lb.Submit(ctx, name, rec); err != nil {
			obslog.L().Warn("leaderboard_submit_failed", zap.String("name", name), zap.Int("score", rec.Score), zap.Error(err))
			return
		}
		obslog.L().Info("leaderboard_submit", zap.String("name", name), zap.Int("score", rec.Score))
	})
}

func (g *Game) saveRun(score int, cause match.Cause) {
	sink := g.hub.deps.History
	if sink == nil {
		return
	}
	now := time.Now()
	started := g.runStart
	if started.IsZero() {
		started = now
	}
	run := &history.Run{
		ID:         uuid.NewString(),
		SessionID:  g.id,
		Room:       g.key.Room,
		PlayerID:   g.player.ID,
		PlayerName: g.player.Name,
		Score:      score,
		Taps:       g.taps,
		Cause:      string(cause),
		StartedAt:  started,
		EndedAt:    now,
		Duration:   now.Sub(started),
	}
	timeout := g.hub.cfg.SubmitTimeout
	g.hub.background(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := sink.SaveRun(ctx, run); err != nil {
			obslog.L().Warn("history_save_failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	})
}

// prime gathers the cosmetic and profile data off-loop. Every failure degrades to
// "no badges / no profile"; the game is readied regardless.
func (g *Game) prime(ctx context.Context) {
	cfg, deps := g.hub.cfg, g.hub.deps
	pctx, cancel := context.WithTimeout(ctx, cfg.PrimeTimeout)
	defer cancel()

	res := &primeResult{profile: match.Profile{ExternalID: g.player.ID, Name: g.player.Name}}
	log := obslog.L().With(zap.String("session_id", g.id))

	if deps.Leaderboard != nil {
		entries, err := deps.Leaderboard.Top(pctx, cfg.LeaderboardSize)
		if err != nil {
			log.Warn("leaderboard_read_failed", zap.Error(err))
		}
		res.entries = entries
		best, ok, err := deps.Leaderboard.Best(pctx, g.player.Name)
		if err != nil {
			log.Warn("leaderboard_best_failed", zap.Error(err))
		} else if ok {
			res.profile.Score = best
		}
	}
	if deps.Profiles != nil {
		p, err := deps.Profiles.Me(pctx, g.player.ID)
		if err != nil {
			log.Debug("profile_lookup_failed", zap.Error(err))
		} else if p != nil {
			res.profile.ImageURL = p.ImageURL
		}
	}
	if deps.Avatars != nil {
		for _, e := range res.entries {
			if e.ImageURL == "" {
				continue
			}
			if _, err := deps.Avatars.Fetch(pctx, e.ImageURL); err != nil {
				log.Debug("avatar_fetch_failed", zap.String("name", e.Name), zap.Error(err))
			}
		}
	}

	select {
	case g.cmds <- command{kind: cmdPrimed, primed: res}:
	case <-g.done:
	}
}

func (g *Game) snapshot() Status {
	best := g.ctrl.Score()
	if p, ok := g.ctrl.Profile(); ok && p.Score > best {
		best = p.Score
	}
	return Status{
		SessionID: g.id,
		Room:      g.key.Room,
		Player:    g.player,
		State:     g.ctrl.State(),
		Score:     g.ctrl.Score(),
		Health:    g.ctrl.Health(),
		Cause:     g.ctrl.Cause(),
		Best:      best,
		Taps:      g.taps,
	}
}

func (g *Game) sendReady(ctx context.Context) {
	g.say(ctx, "sushi.ready", nil, "준비 완료!")
	g.sendFrame(ctx, false)
}

func (g *Game) say(ctx context.Context, key string, data map[string]any, fallback string) {
	g.sendText(ctx, g.hub.text(key, data, fallback))
}

func (g *Game) sendText(ctx context.Context, text string) {
	if err := g.hub.deps.Output.Text(ctx, g.key.Room, text); err != nil {
		obslog.L().Warn("sushi_output_failed", zap.String("room", g.key.Room), zap.Error(err))
	}
}

func (g *Game) sendFrame(ctx context.Context, cascade bool) {
	r := g.hub.deps.Renderer
	if r == nil {
		return
	}
	frame := render.Frame{
		Pieces:        g.ctrl.TowerPieces(),
		Score:         g.ctrl.Score(),
		Health:        g.ctrl.Health(),
		State:         g.ctrl.State(),
		CharacterSide: g.lastSide,
		Cascade:       cascade,
		Badges:        g.badges,
	}
	png, err := r.RenderPNG(ctx, frame)
	if err != nil {
		obslog.L().Warn("sushi_render_failed", zap.String("session_id", g.id), zap.Error(err))
		return
	}
	if err := g.hub.deps.Output.Frame(ctx, g.key.Room, png); err != nil {
		obslog.L().Warn("sushi_output_failed", zap.String("room", g.key.Room), zap.Error(err))
	}
}
