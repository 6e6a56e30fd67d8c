package leaderboard

// Entry is one leaderboard row as read back for display.
type Entry struct {
	Name       string `json:"name"`
	ImageURL   string `json:"image"`
	ExternalID string `json:"id"`
	Score      int    `json:"score"`
}

// Record is the stored value under a player name: {image, score, id}.
type Record struct {
	Image string `json:"image"`
	Score int    `json:"score"`
	ID    string `json:"id"`
}

// Errors
var (
	ErrInvalidArgs = errf("invalid arguments")
	ErrNoClient    = errf("leaderboard store not initialized")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }
