package session

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/park285/Sushi-Neko-bot/internal/history"
	"github.com/park285/Sushi-Neko-bot/internal/leaderboard"
	"github.com/park285/Sushi-Neko-bot/internal/match"
	"github.com/park285/Sushi-Neko-bot/internal/render"
	"github.com/park285/Sushi-Neko-bot/internal/tower"
)

var (
	ErrNoSession = errors.New("no active sushi session")
	ErrClosed    = errors.New("session hub closed")
	ErrNoPlayer  = errors.New("player id required")
)

// Output is where a game reports to its chat room.
type Output interface {
	Text(ctx context.Context, room, text string) error
	Frame(ctx context.Context, room string, png []byte) error
}

// Leaderboard is the subset of the leaderboard store a game touches.
type Leaderboard interface {
	Top(ctx context.Context, n int) ([]leaderboard.Entry, error)
	Best(ctx context.Context, name string) (int, bool, error)
	Submit(ctx context.Context, name string, rec leaderboard.Record) error
}

type ProfileSource interface {
	Me(ctx context.Context, id string) (*match.Profile, error)
}

type AvatarFetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

type HistorySink interface {
	SaveRun(ctx context.Context, run *history.Run) error
}

type FrameRenderer interface {
	RenderPNG(ctx context.Context, f render.Frame) ([]byte, error)
}

type Config struct {
	Match           match.Config
	TickInterval    time.Duration
	LeaderboardSize int
	IdleTimeout     time.Duration
	PrimeTimeout    time.Duration
	SubmitTimeout   time.Duration
	// AutoStart skips the title screen once priming completes.
	AutoStart bool
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 200 * time.Millisecond
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = leaderboard.DefaultTopN
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.PrimeTimeout <= 0 {
		c.PrimeTimeout = 3 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 5 * time.Second
	}
	return c
}

// Player identifies the chat user behind a game.
type Player struct {
	ID   string
	Name string
}

// Key is one game slot: a player in a room.
type Key struct {
	Room     string
	PlayerID string
}

// Status is a point-in-time view of a game, taken on its own loop.
type Status struct {
	SessionID string
	Room      string
	Player    Player
	State     match.State
	Score     int
	Health    float64
	Cause     match.Cause
	Best      int
	Taps      int
}

// HealthPercent rounds health for display.
func (s Status) HealthPercent() int {
	return percent(s.Health)
}

func percent(h float64) int {
	if h < 0 {
		return 0
	}
	return int(h*100 + 0.5)
}

// Deps are the collaborators a Hub wires into every game. Only Output is required.
type Deps struct {
	Output      Output
	Leaderboard Leaderboard
	Profiles    ProfileSource
	Avatars     AvatarFetcher
	History     HistorySink
	Renderer    FrameRenderer
	Messages    Messages
	Prefix      string
	// NewSource builds the tower randomness per game; nil uses a time-seeded PRNG.
	NewSource func() tower.Source
}

// Messages renders chat copy by key, falling back when the key fails.
type Messages interface {
	Text(key string, data any, fallback string) string
}
