package tower

// Draw thresholds for the biased generator.
const (
	leftBelow  = 0.45
	rightBelow = 0.90
)

// Source supplies uniform draws in [0,1).
type Source interface {
	Float64() float64
}

// Manager owns the queue of upcoming pieces. Not safe for concurrent use.
type Manager struct {
	pieces []Piece
	seq    int
	rng    Source
}

func NewManager(rng Source) *Manager {
	if rng == nil {
		rng = NewPRNG(0)
	}
	return &Manager{rng: rng}
}

// Seed clears the tower and stacks None, Right, then initialCount generated pieces.
func (m *Manager) Seed(initialCount int) {
	m.pieces = m.pieces[:0]
	m.seq = 0
	m.push(None)
	m.push(Right)
	for i := 0; i < initialCount; i++ {
		m.GenerateNext()
	}
}

// GenerateNext appends one piece and returns its side.
// A non-None last piece is always followed by None so the tower stays solvable.
func (m *Manager) GenerateNext() Side {
	if n := len(m.pieces); n > 0 && m.pieces[n-1].Side != None {
		m.push(None)
		return None
	}
	side := draw(m.rng.Float64())
	m.push(side)
	return side
}

func draw(r float64) Side {
	switch {
	case r < leftBelow:
		return Left
	case r < rightBelow:
		return Right
	default:
		return None
	}
}

func (m *Manager) PopFront() (Piece, error) {
	if len(m.pieces) == 0 {
		return Piece{}, ErrEmptyTower
	}
	p := m.pieces[0]
	m.pieces = append(m.pieces[:0], m.pieces[1:]...)
	return p, nil
}

func (m *Manager) PeekFront() (Side, error) {
	if len(m.pieces) == 0 {
		return None, ErrEmptyTower
	}
	return m.pieces[0].Side, nil
}

func (m *Manager) Len() int { return len(m.pieces) }

// Snapshot returns the sides front-first.
func (m *Manager) Snapshot() []Side {
	out := make([]Side, len(m.pieces))
	for i, p := range m.pieces {
		out[i] = p.Side
	}
	return out
}

// Pieces returns a copy of the tower front-first.
func (m *Manager) Pieces() []Piece {
	return append([]Piece(nil), m.pieces...)
}

func (m *Manager) push(side Side) {
	m.seq++
	m.pieces = append(m.pieces, Piece{Side: side, Seq: m.seq})
}
