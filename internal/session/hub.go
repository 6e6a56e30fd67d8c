package session

import (
	"context"
	"strings"
	"sync"

	"github.com/park285/Sushi-Neko-bot/internal/obslog"
	"github.com/park285/Sushi-Neko-bot/internal/tower"
	"go.uber.org/zap"
)

// Hub owns every live game. Each game runs its own loop goroutine; the hub only
// routes commands to it.
type Hub struct {
	cfg  Config
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	games  map[Key]*Game
	closed bool
}

func NewHub(cfg Config, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	if deps.NewSource == nil {
		deps.NewSource = func() tower.Source { return tower.NewPRNG(0) }
	}
	return &Hub{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		games:  make(map[Key]*Game),
	}
}

// Start returns the player's game in room, creating it when absent. created is false
// when an existing game was returned.
func (h *Hub) Start(room string, p Player) (g *Game, created bool, err error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return nil, false, ErrNoPlayer
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = p.ID
	}
	key := Key{Room: room, PlayerID: p.ID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false, ErrClosed
	}
	if existing, ok := h.games[key]; ok {
		return existing, false, nil
	}
	g = newGame(h, key, p)
	h.games[key] = g
	h.wg.Add(1)
	go g.run(h.ctx)

	obslog.L().Info("sushi_session_started",
		zap.String("session_id", g.id),
		zap.String("room", room),
		zap.String("player_id", p.ID))
	return g, true, nil
}

func (h *Hub) Get(room, playerID string) (*Game, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.games[Key{Room: room, PlayerID: strings.TrimSpace(playerID)}]
	return g, ok
}

// Tap queues directional inputs for the player's game, applied in order.
func (h *Hub) Tap(room, playerID string, sides ...tower.Side) error {
	g, ok := h.Get(room, playerID)
	if !ok {
		return ErrNoSession
	}
	return g.send(command{kind: cmdTap, sides: sides})
}

func (h *Hub) Restart(room, playerID string) error {
	g, ok := h.Get(room, playerID)
	if !ok {
		return ErrNoSession
	}
	return g.send(command{kind: cmdRestart})
}

// Status asks the game loop for a snapshot.
func (h *Hub) Status(ctx context.Context, room, playerID string) (Status, error) {
	g, ok := h.Get(room, playerID)
	if !ok {
		return Status{}, ErrNoSession
	}
	return g.Status(ctx)
}

func (h *Hub) Quit(room, playerID string) error {
	g, ok := h.Get(room, playerID)
	if !ok {
		return ErrNoSession
	}
	return g.send(command{kind: cmdQuit})
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.games)
}

// Close stops every game loop and waits for them and their background writes.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (h *Hub) remove(g *Game) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.games[g.key]; ok && cur == g {
		delete(h.games, g.key)
	}
}

// background runs fn outside any game loop, tracked for Close. fn gets a context
// detached from hub shutdown so in-flight writes can finish.
func (h *Hub) background(fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(context.WithoutCancel(h.ctx))
	}()
}

func (h *Hub) text(key string, data map[string]any, fallback string) string {
	if h.deps.Messages == nil {
		return fallback
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Prefix"]; !ok {
		data["Prefix"] = h.deps.Prefix
	}
	return h.deps.Messages.Text(key, data, fallback)
}
