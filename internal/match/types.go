package match

import (
	"errors"

	"github.com/park285/Sushi-Neko-bot/internal/tower"
)

// State is the controller's game state.
type State string

const (
	StateLoading  State = "LOADING"
	StateTitle    State = "TITLE"
	StateReady    State = "READY"
	StatePlaying  State = "PLAYING"
	StateGameOver State = "GAME_OVER"
)

// Outcome of one directional input.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeHit       Outcome = "hit"
	OutcomeCollision Outcome = "collision"
)

// Cause records why a run ended.
type Cause string

const (
	CauseNone      Cause = ""
	CauseCollision Cause = "collision"
	CauseTimeout   Cause = "timeout"
)

// Profile is the optional current-user profile. Score is the best score known for it.
type Profile struct {
	ExternalID string
	Name       string
	ImageURL   string
	Score      int
}

type EventType string

const (
	EventStateChanged   EventType = "state_changed"
	EventPieceResolved  EventType = "piece_resolved"
	EventCollision      EventType = "collision"
	EventHealthDepleted EventType = "health_depleted"
	EventHighScore      EventType = "high_score"
)

// Event is what the controller reports to the rendering side.
//
// StateChanged fills From/To. PieceResolved fills Piece (the consumed piece), Side (the
// player's side, the direction the piece flies off) and Generated. Collision fills Piece
// with the front piece that was hit. HighScore fills Profile with the raised score.
type Event struct {
	Type      EventType
	From      State
	To        State
	Piece     tower.Piece
	Side      tower.Side
	Generated tower.Side
	Score     int
	Health    float64
	Profile   Profile
}

type Listener interface {
	OnEvent(ev Event)
}

// ListenerFunc adapts a func to Listener.
type ListenerFunc func(ev Event)

func (f ListenerFunc) OnEvent(ev Event) { f(ev) }

var (
	ErrInvalidInputInState = errors.New("input not accepted in current state")
	ErrInvalidSide         = errors.New("input side must be left or right")
)
