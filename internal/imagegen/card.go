// Package imagegen renders the shareable semester summary card.
package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/casa-dashboard/inaddash/internal/views"
)

// Card dimensions match the Open Graph image size.
const (
	CardWidth  = 1200
	CardHeight = 630
)

// CardData is what the summary card shows.
type CardData struct {
	Title     string
	Period    string
	TotalInad int
	Buckets   []views.Bucket
	Threshold float64
	Method    string
	Sample    bool
}

// CardFromViews builds card data from derived views.
func CardFromViews(v views.Views, title, period string) CardData {
	return CardData{
		Title:     title,
		Period:    period,
		TotalInad: v.Summary.TotalInad,
		Buckets:   v.Histogram,
		Threshold: v.Threshold,
		Method:    v.Method,
		Sample:    v.Sample,
	}
}

var (
	white     = color.RGBA{255, 255, 255, 255}
	lightGray = color.RGBA{200, 205, 215, 255}
)

// GenerateCard draws the card and encodes it as PNG.
func GenerateCard(d CardData) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))

	for y := 0; y < CardHeight; y++ {
		progress := float64(y) / float64(CardHeight)
		c := color.RGBA{uint8(15 + progress*10), uint8(23 + progress*15), uint8(42 + progress*20), 255}
		for x := 0; x < CardWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	fillRect(img, image.Rect(0, 0, CardWidth, 8), parseHex(views.AccentColor))

	title := d.Title
	if title == "" {
		title = "INAD Analysis Dashboard"
	}
	drawText(img, title, 60, 90, white, 4)
	if d.Period != "" {
		drawText(img, d.Period, 60, 150, lightGray, 3)
	}

	drawText(img, strconv.Itoa(d.TotalInad), 60, 300, white, 10)
	drawText(img, "Total INAD", 60, 350, lightGray, 3)

	const boxW, boxH, gap = 250, 150, 20
	x0 := 60
	for i, b := range d.Buckets {
		x := x0 + i*(boxW+gap)
		r := image.Rect(x, 400, x+boxW, 400+boxH)
		fillRect(img, r, darken(parseHex(b.Color), 0.35))
		fillRect(img, image.Rect(x, 400, x+8, 400+boxH), parseHex(b.Color))
		drawText(img, strconv.Itoa(b.Value), x+30, 480, white, 6)
		drawText(img, b.Name, x+30, 530, lightGray, 2)
	}

	footer := fmt.Sprintf("Density threshold %.4f", d.Threshold)
	if d.Method != "" {
		footer += " (" + strings.ReplaceAll(d.Method, "_", " ") + ")"
	}
	if d.Sample {
		footer += " - sample data"
	}
	drawText(img, footer, 60, CardHeight-30, lightGray, 2)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// drawText renders text with the 7x13 bitmap face, enlarged by scale with
// nearest-neighbour sampling. (x, y) is the baseline origin.
func drawText(dst *image.RGBA, text string, x, y int, col color.Color, scale int) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Height
	if w == 0 {
		return
	}
	src := image.NewAlpha(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  src,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Ascent)},
	}
	d.DrawString(text)

	cr, cg, cb, _ := col.RGBA()
	top := y - face.Ascent*scale
	for sy := 0; sy < h*scale; sy++ {
		for sx := 0; sx < w*scale; sx++ {
			a := src.AlphaAt(sx/scale, sy/scale).A
			if a == 0 {
				continue
			}
			px, py := x+sx, top+sy
			if !(image.Point{px, py}.In(dst.Bounds())) {
				continue
			}
			dst.SetRGBA(px, py, color.RGBA{uint8(cr >> 8), uint8(cg >> 8), uint8(cb >> 8), 255})
		}
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func darken(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{uint8(float64(c.R) * f), uint8(float64(c.G) * f), uint8(float64(c.B) * f), 255}
}

// parseHex reads "#RRGGBB". Malformed input yields grey.
func parseHex(s string) color.RGBA {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return color.RGBA{148, 163, 184, 255}
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
}
