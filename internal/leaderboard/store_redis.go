package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTopN = 5
	keyPrefix   = "sushi:highscore"
)

// Store keeps high scores as a name → JSON hash plus a score-ordered sorted set.
type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Dial connects to REDIS_URL and pings once.
func Dial(ctx context.Context, redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for leaderboard")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) keyRecords() string { return keyPrefix }
func (s *Store) keyRank() string { return keyPrefix + ":rank" }

// Submit overwrites the record for name, like the original updateChildValues write.
func (s *Store) Submit(ctx context.Context, name string, rec Record) error {
	if s == nil || s.rdb == nil {
		return ErrNoClient
	}
	name = strings.TrimSpace(name)
	if name == "" || rec.Score < 0 {
		return ErrInvalidArgs
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.keyRecords(), name, raw)
	pipe.ZAdd(ctx, s.keyRank(), redis.Z{Score: float64(rec.Score), Member: name})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("submit high score: %w", err)
	}
	return nil
}

// Top returns up to n entries, highest score first.
func (s *Store) Top(ctx context.Context, n int) ([]Entry, error) {
	if s == nil || s.rdb == nil {
		return nil, ErrNoClient
	}
	if n <= 0 {
		n = DefaultTopN
	}
	names, err := s.rdb.ZRevRange(ctx, s.keyRank(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []Entry{}, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.keyRecords(), names...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(names))
	for i, name := range names {
		raw, ok := vals[i].(string)
		if !ok {
			// rank without record: partial write, skip
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, Entry{Name: name, ImageURL: rec.Image, ExternalID: rec.ID, Score: rec.Score})
	}
	return out, nil
}

// Best returns the stored score for name.
func (s *Store) Best(ctx context.Context, name string) (int, bool, error) {
	if s == nil || s.rdb == nil {
		return 0, false, ErrNoClient
	}
	v, err := s.rdb.ZScore(ctx, s.keyRank(), strings.TrimSpace(name)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int(v), true, nil
}

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /db path.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
