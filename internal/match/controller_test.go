package match

import (
	"testing"

	"github.com/park285/Sushi-Neko-bot/internal/tower"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ events []Event }

func (r *recorder) OnEvent(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestController(t *testing.T, draws ...float64) (*Controller, *recorder) {
	t.Helper()
	if len(draws) == 0 {
		draws = []float64{0.2, 0.6, 0.95}
	}
	rec := &recorder{}
	c := NewController(Config{InitialCount: 10}, tower.NewManager(tower.NewScript(draws...)), rec)
	return c, rec
}

func readyController(t *testing.T, draws ...float64) (*Controller, *recorder) {
	t.Helper()
	c, rec := newTestController(t, draws...)
	require.True(t, c.OnReady())
	require.True(t, c.OnStartPressed())
	require.Equal(t, StateReady, c.State())
	return c, rec
}

func TestStartsInLoadingAndIgnoresTaps(t *testing.T) {
	c, _ := newTestController(t)
	assert.Equal(t, StateLoading, c.State())

	out, err := c.OnDirectionalInput(tower.Left)
	assert.Equal(t, OutcomeIgnored, out)
	assert.ErrorIs(t, err, ErrInvalidInputInState)
	assert.Equal(t, 0, c.TowerLen(), "tower is only seeded on ready")
}

func TestOnReadySeedsTower(t *testing.T) {
	c, rec := newTestController(t)
	require.True(t, c.OnReady())
	assert.False(t, c.OnReady(), "second ready is a no-op")

	assert.Equal(t, StateTitle, c.State())
	snap := c.TowerSnapshot()
	require.Len(t, snap, 12)
	assert.Equal(t, tower.None, snap[0])
	assert.Equal(t, tower.Right, snap[1])

	changes := rec.ofType(EventStateChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, StateLoading, changes[0].From)
	assert.Equal(t, StateTitle, changes[0].To)
}

func TestTapInTitleIsNoop(t *testing.T) {
	c, _ := newTestController(t)
	require.True(t, c.OnReady())
	before := c.TowerSnapshot()

	out, err := c.OnDirectionalInput(tower.Right)
	assert.Equal(t, OutcomeIgnored, out)
	assert.ErrorIs(t, err, ErrInvalidInputInState)
	assert.Equal(t, StateTitle, c.State())
	assert.Equal(t, before, c.TowerSnapshot())
	assert.Equal(t, 0, c.Score())
}

func TestStartOnlyFromTitle(t *testing.T) {
	c, _ := newTestController(t)
	assert.False(t, c.OnStartPressed())
	assert.Equal(t, StateLoading, c.State())
	assert.False(t, c.OnRestartPressed())
}

func TestNoneSideInputRejected(t *testing.T) {
	c, _ := readyController(t)
	out, err := c.OnDirectionalInput(tower.None)
	assert.Equal(t, OutcomeIgnored, out)
	assert.ErrorIs(t, err, ErrInvalidSide)
	assert.Equal(t, StateReady, c.State())
}

func TestFirstTapStartsPlayAndIsJudged(t *testing.T) {
	c, rec := readyController(t)

	out, err := c.OnDirectionalInput(tower.Left)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHit, out)
	assert.Equal(t, StatePlaying, c.State())
	assert.Equal(t, 1, c.Score())
	assert.Equal(t, 1.0, c.Health())
	assert.Equal(t, 12, c.TowerLen())

	resolved := rec.ofType(EventPieceResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, tower.None, resolved[0].Piece.Side)
	assert.Equal(t, 1, resolved[0].Piece.Seq)
	assert.Equal(t, tower.Left, resolved[0].Side)
}

func TestCollisionEndsRunWithoutScoring(t *testing.T) {
	c, rec := readyController(t)
	_, err := c.OnDirectionalInput(tower.Left)
	require.NoError(t, err)

	front := c.TowerSnapshot()[0]
	require.Equal(t, tower.Right, front)
	before := c.TowerSnapshot()

	out, err := c.OnDirectionalInput(tower.Right)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCollision, out)
	assert.Equal(t, StateGameOver, c.State())
	assert.Equal(t, CauseCollision, c.Cause())
	assert.Equal(t, 1, c.Score())
	assert.Equal(t, before, c.TowerSnapshot())

	hits := rec.ofType(EventCollision)
	require.Len(t, hits, 1)
	assert.Equal(t, tower.Right, hits[0].Piece.Side)

	out, err = c.OnDirectionalInput(tower.Left)
	assert.Equal(t, OutcomeIgnored, out)
	assert.ErrorIs(t, err, ErrInvalidInputInState)
	assert.Equal(t, 1, c.Score())
}

func TestScoreIncreasesByOnePerSafeHit(t *testing.T) {
	c, _ := readyController(t, 0.2, 0.6, 0.95, 0.3, 0.7)
	for i := 0; i < 50; i++ {
		front := c.TowerSnapshot()[0]
		side := tower.Left
		if front == tower.Left {
			side = tower.Right
		}
		before := c.Score()
		out, err := c.OnDirectionalInput(side)
		require.NoError(t, err)
		require.Equal(t, OutcomeHit, out)
		require.Equal(t, before+1, c.Score())
		require.LessOrEqual(t, c.Health(), 1.0)
		require.Equal(t, 12, c.TowerLen())
	}
}

func TestHealthCappedAndRecoveredByHits(t *testing.T) {
	c, _ := readyController(t)
	_, _ = c.OnDirectionalInput(tower.Left)
	for i := 0; i < 30; i++ {
		c.OnTick(0)
	}
	assert.InDelta(t, 0.70, c.Health(), 1e-9)

	// front is Right after the first hit
	_, err := c.OnDirectionalInput(tower.Left)
	require.NoError(t, err)
	assert.InDelta(t, 0.80, c.Health(), 1e-9)

	for i := 0; i < 5; i++ {
		front := c.TowerSnapshot()[0]
		side := tower.Left
		if front == tower.Left {
			side = tower.Right
		}
		_, _ = c.OnDirectionalInput(side)
	}
	assert.Equal(t, 1.0, c.Health())
}

func TestHealthRunsOutOnTick101(t *testing.T) {
	c, rec := readyController(t)
	_, err := c.OnDirectionalInput(tower.Left)
	require.NoError(t, err)

	for i := 1; i <= 100; i++ {
		require.Equal(t, StatePlaying, c.OnTick(DefaultDecay), "tick %d", i)
	}
	assert.Equal(t, 0.0, c.Health())

	assert.Equal(t, StateGameOver, c.OnTick(DefaultDecay))
	assert.Equal(t, CauseTimeout, c.Cause())
	assert.Len(t, rec.ofType(EventHealthDepleted), 1)

	c.OnTick(DefaultDecay)
	assert.Less(t, c.Health(), 0.0)
	assert.InDelta(t, -0.01, c.Health(), 1e-9, "ticks after game over are no-ops")
}

func TestTickIgnoredOutsidePlaying(t *testing.T) {
	c, _ := readyController(t)
	assert.Equal(t, StateReady, c.OnTick(0.5))
	assert.Equal(t, 1.0, c.Health())
}

func TestRestartResetsSession(t *testing.T) {
	c, _ := readyController(t)
	_, _ = c.OnDirectionalInput(tower.Left)
	_, _ = c.OnDirectionalInput(tower.Right)
	require.Equal(t, StateGameOver, c.State())

	require.True(t, c.OnRestartPressed())
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, 0, c.Score())
	assert.Equal(t, 1.0, c.Health())
	assert.Equal(t, CauseNone, c.Cause())
	snap := c.TowerSnapshot()
	require.Len(t, snap, 12)
	assert.Equal(t, tower.None, snap[0])
	assert.Equal(t, tower.Right, snap[1])
}

func TestHighScoreEmittedOnlyWhenBeaten(t *testing.T) {
	c, rec := readyController(t)
	c.SetProfile(&Profile{ExternalID: "fb-1", Name: "Neko", Score: 0})

	_, _ = c.OnDirectionalInput(tower.Left)
	_, _ = c.OnDirectionalInput(tower.Right)

	highs := rec.ofType(EventHighScore)
	require.Len(t, highs, 1)
	assert.Equal(t, 1, highs[0].Profile.Score)
	assert.Equal(t, "Neko", highs[0].Profile.Name)

	p, ok := c.Profile()
	require.True(t, ok)
	assert.Equal(t, 1, p.Score)

	// Same score again does not qualify.
	require.True(t, c.OnRestartPressed())
	_, _ = c.OnDirectionalInput(tower.Left)
	_, _ = c.OnDirectionalInput(tower.Right)
	assert.Len(t, rec.ofType(EventHighScore), 1)
}

func TestHighScoreNeedsExternalID(t *testing.T) {
	c, rec := readyController(t)
	c.SetProfile(&Profile{Name: "guest"})
	_, _ = c.OnDirectionalInput(tower.Left)
	_, _ = c.OnDirectionalInput(tower.Right)
	assert.Empty(t, rec.ofType(EventHighScore))
}

func TestSetProfileCopies(t *testing.T) {
	c, _ := newTestController(t)
	p := &Profile{ExternalID: "x", Score: 3}
	c.SetProfile(p)
	p.Score = 99
	got, ok := c.Profile()
	require.True(t, ok)
	assert.Equal(t, 3, got.Score)

	c.SetProfile(nil)
	_, ok = c.Profile()
	assert.False(t, ok)
}
