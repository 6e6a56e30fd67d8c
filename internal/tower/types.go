package tower

import "errors"

// Side is the side of a tower piece, or of the player.
type Side int

const (
	None Side = iota
	Left
	Right
)

var sideName = map[Side]string{
	None:  "none",
	Left:  "left",
	Right: "right",
}

func (s Side) String() string {
	if n, ok := sideName[s]; ok {
		return n
	}
	return "unknown"
}

// Opposite returns the mirrored side. None stays None.
func (s Side) Opposite() Side {
	switch s {
	case Left:
		return Right
	case Right:
		return Left
	default:
		return None
	}
}

// Piece is one logical tower entry. Seq is its 1-based creation order since the last Seed.
type Piece struct {
	Side Side
	Seq  int
}

var ErrEmptyTower = errors.New("tower is empty")
