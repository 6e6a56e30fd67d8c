package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/*.svg
var assetFiles embed.FS

const (
	assetSushi      = "assets/sushi.svg"
	assetChopsticks = "assets/chopsticks.svg"
	assetCat        = "assets/cat.svg"
)

type spriteKey struct {
	name    string
	w, h    int
	mirrorX bool
}

var (
	spriteCache   = map[spriteKey]*image.RGBA{}
	spriteCacheMu sync.RWMutex
)

// sprite rasterizes an embedded SVG at w×h, optionally mirrored horizontally.
func sprite(name string, w, h int, mirrorX bool) (*image.RGBA, error) {
	key := spriteKey{name: name, w: w, h: h, mirrorX: mirrorX}

	spriteCacheMu.RLock()
	if img, ok := spriteCache[key]; ok {
		spriteCacheMu.RUnlock()
		return img, nil
	}
	spriteCacheMu.RUnlock()

	data, err := assetFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
	if err != nil {
		return nil, fmt.Errorf("parse svg %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	if mirrorX {
		img = flipHorizontal(img)
	}

	spriteCacheMu.Lock()
	spriteCache[key] = img
	spriteCacheMu.Unlock()
	return img, nil
}

func flipHorizontal(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetRGBA(b.Max.X-1-(x-b.Min.X), y, src.RGBAAt(x, y))
		}
	}
	return dst
}

// oksvg 는 "fill: #" 처럼 공백이 낀 스타일을 못 읽음
func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	return bytes.ReplaceAll(fixed, []byte("stop-color: #"), []byte("stop-color:#"))
}
