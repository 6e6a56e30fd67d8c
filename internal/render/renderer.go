package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"unicode/utf8"

	"github.com/park285/Sushi-Neko-bot/internal/leaderboard"
	"github.com/park285/Sushi-Neko-bot/internal/match"
	"github.com/park285/Sushi-Neko-bot/internal/tower"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Layout. Piece 0 (the front) sits on the ground line, the rest stack upward.
const (
	canvasW     = 360
	canvasH     = 600
	hudH        = 84
	groundY     = 560
	pieceW      = 120
	pieceH      = 36
	chopW       = 72
	chopH       = 16
	catSize     = 80
	badgeSize   = 28
	barX        = 40
	barY        = 58
	barW        = canvasW - 2*barX
	barH        = 12
	towerCenter = canvasW / 2
	maxVisible  = (groundY - hudH) / pieceH
)

var (
	skyColor      = color.RGBA{R: 255, G: 236, B: 214, A: 255}
	groundColor   = color.RGBA{R: 120, G: 84, B: 60, A: 255}
	hudColor      = color.RGBA{R: 28, G: 31, B: 46, A: 240}
	hudText       = color.RGBA{R: 236, G: 239, B: 255, A: 255}
	barBack       = color.RGBA{R: 70, G: 74, B: 92, A: 255}
	barFull       = color.RGBA{R: 76, G: 201, B: 110, A: 255}
	barLow        = color.RGBA{R: 235, G: 87, B: 87, A: 255}
	badgeBack     = color.RGBA{R: 40, G: 44, B: 64, A: 255}
	collisionLine = color.RGBA{R: 220, G: 20, B: 60, A: 255}
	gameOverRed   = color.RGBA{R: 255, A: 255}
)

// BadgeSource resolves a piece's creation order to a leaderboard profile.
type BadgeSource interface {
	For(seq int) (leaderboard.Entry, bool)
}

// AvatarSource returns already downloaded avatars; rendering never blocks on network.
type AvatarSource interface {
	Cached(url string) (image.Image, bool)
}

// Frame is one snapshot of a match for display.
type Frame struct {
	Pieces        []tower.Piece // front first
	Score         int
	Health        float64
	State         match.State
	CharacterSide tower.Side
	Cascade       bool
	Badges        BadgeSource
	Title         string
}

type Renderer struct {
	avatars AvatarSource
}

func NewRenderer(avatars AvatarSource) *Renderer {
	return &Renderer{avatars: avatars}
}

// RenderPNG draws f and encodes it as PNG.
func (r *Renderer) RenderPNG(ctx context.Context, f Frame) ([]byte, error) {
	img, err := r.Render(ctx, f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) Render(ctx context.Context, f Frame) (*image.RGBA, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(img, img.Bounds(), image.NewUniform(skyColor), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, groundY, canvasW, canvasH), image.NewUniform(groundColor), image.Point{}, draw.Src)

	if err := r.drawTower(img, f); err != nil {
		return nil, err
	}
	if err := drawCat(img, f.CharacterSide); err != nil {
		return nil, err
	}
	if f.Cascade && len(f.Pieces) > 0 {
		strokeRect(img, PieceRect(0).Inset(-2), 3, collisionLine)
	}
	if f.State == match.StateGameOver {
		tint(img, gameOverRed, 0.45)
	}
	drawHUD(img, f)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return img, nil
}

// PieceRect is the body of the i-th visible piece counted from the front.
func PieceRect(i int) image.Rectangle {
	top := groundY - (i+1)*pieceH
	return image.Rect(towerCenter-pieceW/2, top, towerCenter+pieceW/2, top+pieceH)
}

// BadgeRect is where the avatar for the i-th visible piece is drawn.
func BadgeRect(i int) image.Rectangle {
	p := PieceRect(i)
	cy := p.Min.Y + pieceH/2
	return image.Rect(p.Min.X+6, cy-badgeSize/2, p.Min.X+6+badgeSize, cy+badgeSize/2)
}

// HealthBarRect is the filled part of the health bar.
func HealthBarRect(health float64) image.Rectangle {
	if health < 0 {
		health = 0
	}
	if health > 1 {
		health = 1
	}
	return image.Rect(barX, barY, barX+int(float64(barW)*health+0.5), barY+barH)
}

func (r *Renderer) drawTower(img *image.RGBA, f Frame) error {
	body, err := sprite(assetSushi, pieceW, pieceH, false)
	if err != nil {
		return err
	}
	for i, p := range f.Pieces {
		if i >= maxVisible {
			break
		}
		rect := PieceRect(i)
		draw.Draw(img, rect, body, image.Point{}, draw.Over)

		if p.Side != tower.None {
			sticks, err := sprite(assetChopsticks, chopW, chopH, p.Side == tower.Right)
			if err != nil {
				return err
			}
			cy := rect.Min.Y + pieceH/2
			var at image.Rectangle
			if p.Side == tower.Left {
				at = image.Rect(rect.Min.X-chopW, cy-chopH/2, rect.Min.X, cy+chopH/2)
			} else {
				at = image.Rect(rect.Max.X, cy-chopH/2, rect.Max.X+chopW, cy+chopH/2)
			}
			draw.Draw(img, at, sticks, image.Point{}, draw.Over)
		}
		r.drawBadge(img, f.Badges, p.Seq, i)
	}
	return nil
}

func (r *Renderer) drawBadge(img *image.RGBA, badges BadgeSource, seq, i int) {
	if badges == nil {
		return
	}
	entry, ok := badges.For(seq)
	if !ok {
		return
	}
	dst := BadgeRect(i)
	if r.avatars != nil {
		if av, ok := r.avatars.Cached(entry.ImageURL); ok && av != nil {
			xdraw.CatmullRom.Scale(img, dst, av, av.Bounds(), xdraw.Over, nil)
			return
		}
	}
	// 아바타가 없으면 이니셜
	draw.Draw(img, dst, image.NewUniform(badgeBack), image.Point{}, draw.Src)
	if initial := firstASCII(entry.Name); initial != "" {
		drawText(img, initial, dst.Min.X+(badgeSize-7*2)/2, dst.Min.Y+(badgeSize-13*2)/2, 2, hudText)
	}
}

func drawCat(img *image.RGBA, side tower.Side) error {
	// 캐릭터는 오른쪽을 보고 그려져 있음
	cat, err := sprite(assetCat, catSize, catSize, side == tower.Right)
	if err != nil {
		return err
	}
	x := towerCenter - pieceW/2 - chopW/2 - catSize/2 - 20
	if side == tower.Right {
		x = towerCenter + pieceW/2 + chopW/2 - catSize/2 + 20
	}
	draw.Draw(img, image.Rect(x, groundY-catSize, x+catSize, groundY), cat, image.Point{}, draw.Over)
	return nil
}

func drawHUD(img *image.RGBA, f Frame) {
	draw.Draw(img, image.Rect(0, 0, canvasW, hudH), image.NewUniform(hudColor), image.Point{}, draw.Over)

	score := fmt.Sprintf("%d", f.Score)
	drawCentered(img, score, 10, 3, hudText)

	draw.Draw(img, image.Rect(barX, barY, barX+barW, barY+barH), image.NewUniform(barBack), image.Point{}, draw.Src)
	fill := barFull
	if f.Health < 0.3 {
		fill = barLow
	}
	if bar := HealthBarRect(f.Health); !bar.Empty() {
		draw.Draw(img, bar, image.NewUniform(fill), image.Point{}, draw.Src)
	}

	banner := strings.TrimSpace(f.Title)
	if banner == "" {
		switch f.State {
		case match.StateLoading:
			banner = "LOADING..."
		case match.StateTitle:
			banner = "SUSHI NEKO"
		case match.StateReady:
			banner = "TAP L OR R"
		case match.StateGameOver:
			banner = "GAME OVER"
		}
	}
	if banner != "" {
		drawCentered(img, banner, hudH+16, 2, hudColor)
	}
}

func drawCentered(dst draw.Image, s string, y, scale int, clr color.Color) {
	w := font.MeasureString(basicfont.Face7x13, s).Ceil() * scale
	drawText(dst, s, (canvasW-w)/2, y, scale, clr)
}

// drawText renders s with the 7x13 bitmap face scaled by an integer factor; (x, y) is top-left.
func drawText(dst draw.Image, s string, x, y, scale int, clr color.Color) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	if w <= 0 {
		return
	}
	tmp := image.NewRGBA(image.Rect(0, 0, w, face.Height))
	d := &font.Drawer{Dst: tmp, Src: image.NewUniform(clr), Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(s)
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x, y, x+w*scale, y+face.Height*scale), tmp, tmp.Bounds(), xdraw.Over, nil)
}

func strokeRect(img *image.RGBA, r image.Rectangle, width int, clr color.Color) {
	u := image.NewUniform(clr)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), u, image.Point{}, draw.Over)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), u, image.Point{}, draw.Over)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), u, image.Point{}, draw.Over)
	draw.Draw(img, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Over)
}

// tint mixes every opaque pixel toward clr by amount (0..1).
func tint(img *image.RGBA, clr color.RGBA, amount float64) {
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a)*(1-amount) + float64(b)*amount + 0.5)
	}
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i] = mix(img.Pix[i], clr.R)
		img.Pix[i+1] = mix(img.Pix[i+1], clr.G)
		img.Pix[i+2] = mix(img.Pix[i+2], clr.B)
	}
}

func firstASCII(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r <= ' ' || r >= utf8.RuneSelf {
		return ""
	}
	return strings.ToUpper(string(r))
}
