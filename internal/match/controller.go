package match

import (
	"math"

	"github.com/park285/Sushi-Neko-bot/internal/obslog"
	"github.com/park285/Sushi-Neko-bot/internal/tower"
	"go.uber.org/zap"
)

const (
	DefaultInitialCount = 10
	DefaultHealthPerHit = 0.1
	DefaultDecay        = 0.01
	maxHealth           = 1.0
)

type Config struct {
	InitialCount int
	HealthPerHit float64
	Decay        float64
}

func (c Config) withDefaults() Config {
	if c.InitialCount <= 0 {
		c.InitialCount = DefaultInitialCount
	}
	if c.HealthPerHit <= 0 {
		c.HealthPerHit = DefaultHealthPerHit
	}
	if c.Decay <= 0 {
		c.Decay = DefaultDecay
	}
	return c
}

// Controller owns one match session and its state machine.
// Calls must be serialized by the driver; there is no locking.
type Controller struct {
	cfg      Config
	tower    *tower.Manager
	listener Listener

	state   State
	health  float64
	score   int
	cause   Cause
	profile *Profile
}

func NewController(cfg Config, t *tower.Manager, l Listener) *Controller {
	if t == nil {
		t = tower.NewManager(nil)
	}
	if l == nil {
		l = ListenerFunc(func(Event) {})
	}
	return &Controller{
		cfg:      cfg.withDefaults(),
		tower:    t,
		listener: l,
		state:    StateLoading,
		health:   maxHealth,
	}
}

// OnReady moves Loading to Title and seeds the tower.
func (c *Controller) OnReady() bool {
	if c.state != StateLoading {
		return false
	}
	c.tower.Seed(c.cfg.InitialCount)
	c.setState(StateTitle)
	return true
}

// OnStartPressed moves Title to Ready.
func (c *Controller) OnStartPressed() bool {
	if c.state != StateTitle {
		return false
	}
	c.setState(StateReady)
	return true
}

// OnRestartPressed resets the session and moves GameOver to Ready.
func (c *Controller) OnRestartPressed() bool {
	if c.state != StateGameOver {
		return false
	}
	c.tower.Seed(c.cfg.InitialCount)
	c.score = 0
	c.health = maxHealth
	c.cause = CauseNone
	c.setState(StateReady)
	return true
}

// OnDirectionalInput judges one tap. The first tap in Ready starts play and is judged too.
func (c *Controller) OnDirectionalInput(side tower.Side) (Outcome, error) {
	if side != tower.Left && side != tower.Right {
		return OutcomeIgnored, ErrInvalidSide
	}
	if c.state != StateReady && c.state != StatePlaying {
		return OutcomeIgnored, ErrInvalidInputInState
	}
	if c.state == StateReady {
		c.setState(StatePlaying)
	}

	front, err := c.tower.PeekFront()
	if err != nil {
		obslog.L().DPanic("sushi_tower_contract", zap.String("op", "peek"), zap.Error(err))
		return OutcomeIgnored, err
	}

	if side == front {
		piece := c.frontPiece()
		c.listener.OnEvent(Event{Type: EventCollision, Piece: piece, Side: side, Score: c.score, Health: c.health})
		c.gameOver(CauseCollision)
		return OutcomeCollision, nil
	}

	c.health = quantize(math.Min(maxHealth, c.health+c.cfg.HealthPerHit))
	c.score++
	piece, err := c.tower.PopFront()
	if err != nil {
		obslog.L().DPanic("sushi_tower_contract", zap.String("op", "pop"), zap.Error(err))
		return OutcomeIgnored, err
	}
	generated := c.tower.GenerateNext()
	c.listener.OnEvent(Event{
		Type:      EventPieceResolved,
		Piece:     piece,
		Side:      side,
		Generated: generated,
		Score:     c.score,
		Health:    c.health,
	})
	return OutcomeHit, nil
}

// OnTick applies one step of health decay while Playing. A non-positive delta uses the
// configured decay.
func (c *Controller) OnTick(delta float64) State {
	if c.state != StatePlaying {
		return c.state
	}
	if delta <= 0 {
		delta = c.cfg.Decay
	}
	c.health = quantize(c.health - delta)
	if c.health < 0 {
		c.listener.OnEvent(Event{Type: EventHealthDepleted, Score: c.score, Health: c.health})
		c.gameOver(CauseTimeout)
	}
	return c.state
}

// SetProfile accepts the current-user profile whenever its lookup completes.
func (c *Controller) SetProfile(p *Profile) {
	if p == nil {
		c.profile = nil
		return
	}
	cp := *p
	c.profile = &cp
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Health() float64 { return c.health }
func (c *Controller) Score() int { return c.score }
func (c *Controller) Cause() Cause { return c.cause }
func (c *Controller) TowerLen() int { return c.tower.Len() }
func (c *Controller) TowerSnapshot() []tower.Side { return c.tower.Snapshot() }
func (c *Controller) TowerPieces() []tower.Piece { return c.tower.Pieces() }

// Profile returns a copy of the current profile, if any.
func (c *Controller) Profile() (Profile, bool) {
	if c.profile == nil {
		return Profile{}, false
	}
	return *c.profile, true
}

func (c *Controller) gameOver(cause Cause) {
	c.cause = cause
	c.setState(StateGameOver)

	// Only a known external id with a better score qualifies for a leaderboard write.
	if p := c.profile; p != nil && p.ExternalID != "" && c.score > p.Score {
		p.Score = c.score
		c.listener.OnEvent(Event{Type: EventHighScore, Score: c.score, Profile: *p})
	}
}

func (c *Controller) setState(s State) {
	from := c.state
	c.state = s
	c.listener.OnEvent(Event{Type: EventStateChanged, From: from, To: s, Score: c.score, Health: c.health})
}

func (c *Controller) frontPiece() tower.Piece {
	if ps := c.tower.Pieces(); len(ps) > 0 {
		return ps[0]
	}
	return tower.Piece{}
}

// quantize keeps repeated decay from drifting across zero one tick early.
func quantize(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}
