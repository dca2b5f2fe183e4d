// Package charts renders dashboard charts as PNG.
package charts

import (
	"errors"
	"fmt"
	"io"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/casa-dashboard/inaddash/internal/views"
)

const (
	Width  = 800
	Height = 400
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to chart")

func hexColor(s string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}

// Histogram draws the priority distribution as a bar chart.
func Histogram(w io.Writer, title string, buckets []views.Bucket) error {
	if len(buckets) == 0 {
		return ErrNoData
	}
	maxVal := 0.0
	bars := make([]chart.Value, 0, len(buckets))
	for _, b := range buckets {
		v := float64(b.Value)
		if v > maxVal {
			maxVal = v
		}
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s (%d)", b.Name, b.Value),
			Value: v,
			Style: chart.Style{
				FillColor:   hexColor(b.Color),
				StrokeColor: hexColor(b.Color),
				StrokeWidth: 1,
			},
		})
	}

	bc := chart.BarChart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		BarWidth:   100,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: headroom(maxVal)},
		},
		Bars: bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}
	return nil
}

// Trend draws one line per series over the semester labels.
func Trend(w io.Writer, title string, data views.ChartData) error {
	n := len(data.Labels)
	if n == 0 {
		return ErrNoData
	}

	xs := make([]float64, n)
	ticks := make([]chart.Tick, n)
	for i, l := range data.Labels {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: l}
	}

	maxVal := 0.0
	var series []chart.Series
	for _, s := range data.Series {
		ys := make([]float64, n)
		for i := 0; i < n && i < len(s.Data); i++ {
			ys[i] = s.Data[i]
			if ys[i] > maxVal {
				maxVal = ys[i]
			}
		}
		col := hexColor(s.Color)
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    4,
			},
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}

	xMax := float64(n - 1)
	if xMax < 1 {
		xMax = 1
	}
	ch := chart.Chart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Ticks: ticks, Range: &chart.ContinuousRange{Min: 0, Max: xMax}},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: headroom(maxVal)}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render trend: %w", err)
	}
	return nil
}

func headroom(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v * 1.1
}
