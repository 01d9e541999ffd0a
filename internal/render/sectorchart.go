package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"f1telemetry/internal/model"
)

const (
	defaultSectorWidth  = 1000
	defaultSectorHeight = 900
)

// WriteSectorPNG renders the three sector delta panels stacked vertically.
func WriteSectorPNG(w io.Writer, driver string, deltas []model.SectorDelta, opts Options) error {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = defaultSectorWidth
	}
	if height <= 0 {
		height = defaultSectorHeight
	}
	if len(deltas) == 0 {
		return fmt.Errorf("no sector deltas for %s: %w", driver, model.ErrNotAvailable)
	}
	panelHeight := height / len(SectorPanels)
	laps, sectors := SectorSeries(deltas)
	xRange := lapRange(laps)

	canvas := image.NewRGBA(image.Rect(0, 0, width, panelHeight*len(SectorPanels)))
	for i, panel := range SectorPanels {
		img, err := renderPanel(panel, laps, sectors[i], xRange, width, panelHeight, i == len(SectorPanels)-1)
		if err != nil {
			return fmt.Errorf("%s panel for %s: %w", panel.Name, driver, err)
		}
		offset := image.Pt(0, i*panelHeight)
		draw.Draw(canvas, img.Bounds().Add(offset), img, img.Bounds().Min, draw.Src)
	}
	return png.Encode(w, canvas)
}

func renderPanel(panel SectorPanel, laps, values []float64, xRange *chart.ContinuousRange, width, height int, last bool) (image.Image, error) {
	xs, ys := laps, values
	if len(xs) == 1 {
		xs = []float64{laps[0], laps[0]}
		ys = []float64{values[0], values[0]}
	}
	stroke := drawing.ColorFromHex(strings.TrimPrefix(Hex(parseColor(panel.Color)), "#"))

	xAxis := chart.XAxis{Range: xRange}
	if last {
		xAxis.Name = "Lap Number"
	}
	ch := chart.Chart{
		Title:      panel.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: "Delta (seconds)", Range: deltaRange(values)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    panel.Name,
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: stroke, StrokeWidth: 2, DotColor: stroke, DotWidth: 3},
			},
		},
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return png.Decode(&buf)
}

// lapRange pads the lap axis so a single lap still spans a range.
func lapRange(laps []float64) *chart.ContinuousRange {
	min, max := math.Inf(1), math.Inf(-1)
	for _, l := range laps {
		min, max = math.Min(min, l), math.Max(max, l)
	}
	if math.IsInf(min, 1) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if max-min < 1 {
		return &chart.ContinuousRange{Min: min - 1, Max: max + 1}
	}
	return &chart.ContinuousRange{Min: min, Max: max}
}

func deltaRange(values []float64) *chart.ContinuousRange {
	max := 0.0
	for _, v := range values {
		max = math.Max(max, v)
	}
	if max == 0 {
		max = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: max * 1.1}
}
