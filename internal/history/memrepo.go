package history

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memrepo is used when no DATABASE_URL is configured. Runs live for the process lifetime.
type memrepo struct {
	mu       sync.RWMutex
	byID     map[string]*Run
	byPlayer map[string][]*Run
}

func NewMemoryRepository() Repository {
	return &memrepo{
		byID:     make(map[string]*Run),
		byPlayer: make(map[string][]*Run),
	}
}

func (m *memrepo) SaveRun(ctx context.Context, run *Run) error {
	if run == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[run.ID]; ok {
		return ErrDuplicateRun
	}
	cp := *run
	key := strings.TrimSpace(run.PlayerID)
	m.byID[run.ID] = &cp
	m.byPlayer[key] = append(m.byPlayer[key], &cp)
	return nil
}

func (m *memrepo) RecentRuns(ctx context.Context, playerID string, limit int) ([]*Run, error) {
	m.mu.RLock()
	items := append([]*Run(nil), m.byPlayer[strings.TrimSpace(playerID)]...)
	m.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool { return items[i].EndedAt.After(items[j].EndedAt) })
	if limit = clampLimit(limit); len(items) > limit {
		items = items[:limit]
	}
	out := make([]*Run, 0, len(items))
	for _, r := range items {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memrepo) BestRun(ctx context.Context, playerID string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Run
	for _, r := range m.byPlayer[strings.TrimSpace(playerID)] {
		if best == nil || r.Score > best.Score || (r.Score == best.Score && r.EndedAt.Before(best.EndedAt)) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *memrepo) Close() error { return nil }
