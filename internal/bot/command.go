package bot

import (
	"strings"

	"github.com/park285/Sushi-Neko-bot/internal/tower"
)

type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionTap
	ActionRestart
	ActionStatus
	ActionTop
	ActionBest
	ActionQuit
	ActionHelp
	ActionUnknown
)

// maxTapsPerMessage bounds one "llrr..." burst.
const maxTapsPerMessage = 20

type Command struct {
	Action Action
	Sides  []tower.Side
	Raw    string
}

var subcommands = map[string]Action{
	"start":   ActionStart,
	"시작":      ActionStart,
	"restart": ActionRestart,
	"다시":      ActionRestart,
	"status":  ActionStatus,
	"현황":      ActionStatus,
	"top":     ActionTop,
	"랭킹":      ActionTop,
	"best":    ActionBest,
	"기록":      ActionBest,
	"quit":    ActionQuit,
	"종료":      ActionQuit,
	"help":    ActionHelp,
	"도움":      ActionHelp,
	"left":    ActionTap,
	"right":   ActionTap,
	"왼":       ActionTap,
	"오":       ActionTap,
}

// Parse reads "{prefix}sushi <sub>" or a bare "{prefix}l" / "{prefix}rrl" tap shortcut.
// ok is false when text is not addressed to this bot.
func Parse(prefix, text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Command{}, false
	}
	head := strings.ToLower(fields[0])

	if sides, ok := parseTaps(head); ok {
		return Command{Action: ActionTap, Sides: sides, Raw: rest}, true
	}
	if head != "sushi" && head != "스시" {
		return Command{}, false
	}
	if len(fields) == 1 {
		return Command{Action: ActionStart, Raw: rest}, true
	}

	sub := strings.ToLower(fields[1])
	if sides, ok := parseTaps(sub); ok {
		return Command{Action: ActionTap, Sides: sides, Raw: rest}, true
	}
	action, ok := subcommands[sub]
	if !ok {
		return Command{Action: ActionUnknown, Raw: rest}, true
	}
	cmd := Command{Action: action, Raw: rest}
	if action == ActionTap {
		switch sub {
		case "left", "왼":
			cmd.Sides = []tower.Side{tower.Left}
		default:
			cmd.Sides = []tower.Side{tower.Right}
		}
	}
	return cmd, true
}

// parseTaps accepts strings made only of l and r.
func parseTaps(s string) ([]tower.Side, bool) {
	if s == "" || len(s) > maxTapsPerMessage {
		return nil, false
	}
	sides := make([]tower.Side, 0, len(s))
	for _, c := range s {
		switch c {
		case 'l':
			sides = append(sides, tower.Left)
		case 'r':
			sides = append(sides, tower.Right)
		default:
			return nil, false
		}
	}
	return sides, true
}
