package bot

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/park285/Sushi-Neko-bot/internal/iris"
)

// Presenter delivers text and rendered frames to a room through the gateway egress.
type Presenter struct {
	egress  iris.Egress
	timeout time.Duration
}

func NewPresenter(egress iris.Egress) *Presenter {
	return &Presenter{egress: egress, timeout: 10 * time.Second}
}

func (p *Presenter) Text(ctx context.Context, room, text string) error {
	if p == nil || p.egress == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.egress.SendText(ctx, room, text)
}

func (p *Presenter) Frame(ctx context.Context, room string, png []byte) error {
	if p == nil || p.egress == nil || len(png) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.egress.SendImage(ctx, room, base64.StdEncoding.EncodeToString(png))
}
