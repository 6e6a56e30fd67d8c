package leaderboard

// Badges maps a tower piece's creation order to the profile whose score equals it.
// Cosmetic only; game logic never reads it.
type Badges struct {
	byIndex map[int]Entry
}

// NewBadges indexes entries by score. Later entries win on equal scores.
func NewBadges(entries []Entry) *Badges {
	b := &Badges{byIndex: make(map[int]Entry, len(entries))}
	for _, e := range entries {
		if e.Score <= 0 {
			continue
		}
		b.byIndex[e.Score] = e
	}
	return b
}

// For returns the badge for piece seq (1-based), if any.
func (b *Badges) For(seq int) (Entry, bool) {
	if b == nil {
		return Entry{}, false
	}
	e, ok := b.byIndex[seq]
	return e, ok
}

func (b *Badges) Len() int {
	if b == nil {
		return 0
	}
	return len(b.byIndex)
}
