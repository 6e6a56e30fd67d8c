package bot

import (
	"testing"

	"github.com/park285/Sushi-Neko-bot/internal/tower"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	L, R := tower.Left, tower.Right
	tests := []struct {
		in     string
		ok     bool
		action Action
		sides  []tower.Side
	}{
		{in: "!sushi", ok: true, action: ActionStart},
		{in: "  !sushi start ", ok: true, action: ActionStart},
		{in: "!스시 시작", ok: true, action: ActionStart},
		{in: "!l", ok: true, action: ActionTap, sides: []tower.Side{L}},
		{in: "!R", ok: true, action: ActionTap, sides: []tower.Side{R}},
		{in: "!lrrl", ok: true, action: ActionTap, sides: []tower.Side{L, R, R, L}},
		{in: "!sushi llr", ok: true, action: ActionTap, sides: []tower.Side{L, L, R}},
		{in: "!sushi left", ok: true, action: ActionTap, sides: []tower.Side{L}},
		{in: "!sushi 오", ok: true, action: ActionTap, sides: []tower.Side{R}},
		{in: "!sushi restart", ok: true, action: ActionRestart},
		{in: "!sushi status", ok: true, action: ActionStatus},
		{in: "!sushi top", ok: true, action: ActionTop},
		{in: "!sushi best", ok: true, action: ActionBest},
		{in: "!sushi quit", ok: true, action: ActionQuit},
		{in: "!sushi help", ok: true, action: ActionHelp},
		{in: "!sushi dance", ok: true, action: ActionUnknown},
		{in: "!list", ok: false},
		{in: "sushi", ok: false},
		{in: "!", ok: false},
		{in: "!lllllllllllllllllllll", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cmd, ok := Parse("!", tt.in)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.action, cmd.Action)
			assert.Equal(t, tt.sides, cmd.Sides)
		})
	}
}

func TestParseNeedsPrefix(t *testing.T) {
	_, ok := Parse("", "!sushi")
	assert.False(t, ok)
}
