package history

import (
	"context"
	"errors"
	"time"
)

var ErrDuplicateRun = errors.New("sushi run already recorded")

// Run is one finished play from Ready to GameOver.
type Run struct {
	ID         string
	SessionID  string
	Room       string
	PlayerID   string
	PlayerName string
	Score      int
	Taps       int
	Cause      string
	StartedAt  time.Time
	EndedAt    time.Time
	Duration   time.Duration
}

type Repository interface {
	SaveRun(ctx context.Context, run *Run) error
	RecentRuns(ctx context.Context, playerID string, limit int) ([]*Run, error)
	BestRun(ctx context.Context, playerID string) (*Run, error)
	Close() error
}

const (
	defaultLimit = 10
	maxLimit     = 50
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
