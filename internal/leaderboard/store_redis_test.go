package leaderboard

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func TestSubmitAndTopOrdered(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for name, rec := range map[string]Record{
		"Alice": {Image: "https://img/a", Score: 12, ID: "a"},
		"Bob":   {Image: "https://img/b", Score: 30, ID: "b"},
		"Cat":   {Image: "https://img/c", Score: 7, ID: "c"},
	} {
		if err := s.Submit(ctx, name, rec); err != nil {
			t.Fatalf("Submit %s: %v", name, err)
		}
	}

	top, err := s.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", len(top), top)
	}
	if top[0].Name != "Bob" || top[0].Score != 30 || top[0].ExternalID != "b" || top[0].ImageURL != "https://img/b" {
		t.Fatalf("unexpected first entry: %+v", top[0])
	}
	if top[1].Name != "Alice" {
		t.Fatalf("expected Alice second, got %+v", top[1])
	}
}

func TestSubmitOverwrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Submit(ctx, "Neko", Record{Score: 5, ID: "n"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Submit(ctx, "Neko", Record{Score: 9, ID: "n"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	best, ok, err := s.Best(ctx, "Neko")
	if err != nil || !ok || best != 9 {
		t.Fatalf("Best: got %d ok=%v err=%v", best, ok, err)
	}
	top, _ := s.Top(ctx, 0)
	if len(top) != 1 || top[0].Score != 9 {
		t.Fatalf("expected single overwritten entry, got %v", top)
	}
}

func TestBestMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok, err := s.Best(context.Background(), "ghost")
	if err != nil || ok {
		t.Fatalf("expected missing best, ok=%v err=%v", ok, err)
	}
}

func TestTopEmptyAndPartial(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	top, err := s.Top(ctx, 5)
	if err != nil || len(top) != 0 {
		t.Fatalf("expected empty top, got %v err=%v", top, err)
	}
	// rank entry without a record is skipped
	if _, err := mr.ZAdd(keyPrefix+":rank", 3, "orphan"); err != nil {
		t.Fatalf("ZAdd: %v", err)
	}
	top, err = s.Top(ctx, 5)
	if err != nil || len(top) != 0 {
		t.Fatalf("expected orphan skipped, got %v err=%v", top, err)
	}
}

func TestSubmitRejectsBadArgs(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Submit(context.Background(), "  ", Record{Score: 1}); err != ErrInvalidArgs {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
	var nilStore *Store
	if _, err := nilStore.Top(context.Background(), 1); err != ErrNoClient {
		t.Fatalf("expected ErrNoClient, got %v", err)
	}
}

func TestDialAndParseURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	s, err := Dial(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	opts, err := ParseRedisURL("rediss://:secret@cache:6380/3")
	if err != nil {
		t.Fatalf("ParseRedisURL: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "secret" || opts.DB != 3 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if _, err := ParseRedisURL("http://x"); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestBadgesIndexByScore(t *testing.T) {
	b := NewBadges([]Entry{
		{Name: "A", Score: 4},
		{Name: "B", Score: 4},
		{Name: "Z", Score: 0},
		{Name: "C", Score: 11},
	})
	if b.Len() != 2 {
		t.Fatalf("expected 2 badge slots, got %d", b.Len())
	}
	if e, ok := b.For(4); !ok || e.Name != "B" {
		t.Fatalf("expected later entry B at 4, got %+v ok=%v", e, ok)
	}
	if _, ok := b.For(5); ok {
		t.Fatalf("unexpected badge at 5")
	}
	var nilBadges *Badges
	if _, ok := nilBadges.For(1); ok {
		t.Fatalf("nil badges should return nothing")
	}
}
