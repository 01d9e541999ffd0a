package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	"github.com/llgcode/draw2d/draw2dsvg"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	defaultWidth  = 900
	defaultHeight = 800
	margin        = 40.0
)

// WriteSVG draws a track figure (racing line or overlay) as SVG.
func WriteSVG(w io.Writer, fig Figure) error {
	width, height := figureSize(fig)
	svg := draw2dsvg.NewSvg()
	gc := draw2dsvg.NewGraphicContext(svg)
	drawFigure(gc, fig, float64(width), float64(height))

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "\t")
	if err := enc.Encode(svg); err != nil {
		return fmt.Errorf("encode svg: %w", err)
	}
	size := fmt.Sprintf(`<svg width="%d" height="%d" viewBox="0 0 %d %d" `, width, height, width, height)
	_, err := w.Write(bytes.Replace(buf.Bytes(), []byte("<svg "), []byte(size), 1))
	return err
}

// WritePNG draws a track figure as PNG.
func WritePNG(w io.Writer, fig Figure) error {
	width, height := figureSize(fig)
	dest := image.NewRGBA(image.Rect(0, 0, width, height))
	gc := draw2dimg.NewGraphicContext(dest)
	drawFigure(gc, fig, float64(width), float64(height))
	return png.Encode(w, dest)
}

func figureSize(fig Figure) (int, int) {
	width, height := fig.Layout.Width, fig.Layout.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	return width, height
}

// projection maps track coordinates onto the canvas with one scale for
// both axes, centered, Y pointing up.
type projection struct {
	minX, minY float64
	scale      float64
	offX, offY float64
	height     float64
}

func newProjection(traces []Trace, width, height float64) projection {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, tr := range traces {
		for i := range tr.X {
			x, y := tr.X[i], tr.Y[i]
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
	}
	if math.IsInf(minX, 1) {
		return projection{scale: 1, height: height}
	}
	dx, dy := maxX-minX, maxY-minY
	availW, availH := width-2*margin, height-2*margin
	scale := 1.0
	switch {
	case dx > 0 && dy > 0:
		scale = math.Min(availW/dx, availH/dy)
	case dx > 0:
		scale = availW / dx
	case dy > 0:
		scale = availH / dy
	}
	return projection{
		minX:   minX,
		minY:   minY,
		scale:  scale,
		offX:   margin + (availW-dx*scale)/2,
		offY:   margin + (availH-dy*scale)/2,
		height: height,
	}
}

func (p projection) point(x, y float64) (float64, float64) {
	return p.offX + (x-p.minX)*p.scale, p.height - (p.offY + (y-p.minY)*p.scale)
}

func drawFigure(gc draw2d.GraphicContext, fig Figure, width, height float64) {
	gc.SetFillColor(color.White)
	gc.BeginPath()
	draw2dkit.Rectangle(gc, 0, 0, width, height)
	gc.Fill()

	proj := newProjection(fig.Data, width, height)
	for _, tr := range fig.Data {
		if strings.Contains(tr.Mode, "lines") {
			drawLine(gc, proj, tr)
		}
		if strings.Contains(tr.Mode, "markers") {
			drawMarkers(gc, proj, tr)
		}
	}
}

func drawLine(gc draw2d.GraphicContext, proj projection, tr Trace) {
	if len(tr.X) < 2 || tr.Line == nil {
		return
	}
	gc.Save()
	defer gc.Restore()
	gc.SetStrokeColor(parseColor(tr.Line.Color))
	gc.SetLineWidth(math.Max(tr.Line.Width, 1))
	if tr.Line.Dash == "dash" {
		gc.SetLineDash([]float64{12, 8}, 0)
	}
	gc.SetLineJoin(draw2d.RoundJoin)
	gc.SetLineCap(draw2d.RoundCap)
	gc.BeginPath()
	pen := false
	for i := range tr.X {
		if math.IsNaN(tr.X[i]) || math.IsNaN(tr.Y[i]) {
			pen = false
			continue
		}
		x, y := proj.point(tr.X[i], tr.Y[i])
		if pen {
			gc.LineTo(x, y)
		} else {
			gc.MoveTo(x, y)
			pen = true
		}
	}
	gc.Stroke()
}

func drawMarkers(gc draw2d.GraphicContext, proj projection, tr Trace) {
	if tr.Marker == nil {
		return
	}
	m := tr.Marker
	radius := math.Max(m.Size/2, 1)
	colorAt := func(int) color.Color { return parseColor("") }
	switch c := m.Color.(type) {
	case string:
		col := parseColor(c)
		colorAt = func(int) color.Color { return col }
	case []float64:
		cs := LookupColorscale("")
		if m.Colorscale != nil {
			cs = *m.Colorscale
		}
		min, max := valueRange(c, m.CMin, m.CMax)
		colorAt = func(i int) color.Color {
			if i >= len(c) {
				return cs.At(0)
			}
			return cs.Map(c[i], min, max)
		}
	}
	gc.Save()
	defer gc.Restore()
	for i := range tr.X {
		if math.IsNaN(tr.X[i]) || math.IsNaN(tr.Y[i]) {
			continue
		}
		x, y := proj.point(tr.X[i], tr.Y[i])
		gc.SetFillColor(colorAt(i))
		gc.BeginPath()
		if m.Symbol == startMarker {
			star(gc, x, y, radius)
		} else {
			draw2dkit.Circle(gc, x, y, radius)
		}
		if m.Line != nil && m.Line.Width > 0 {
			gc.SetStrokeColor(parseColor(m.Line.Color))
			gc.SetLineWidth(m.Line.Width)
			gc.FillStroke()
		} else {
			gc.Fill()
		}
	}
}

func star(path draw2d.PathBuilder, cx, cy, r float64) {
	inner := r * 0.45
	for i := 0; i < 10; i++ {
		rad := r
		if i%2 == 1 {
			rad = inner
		}
		a := -math.Pi/2 + float64(i)*math.Pi/5
		x, y := cx+rad*math.Cos(a), cy+rad*math.Sin(a)
		if i == 0 {
			path.MoveTo(x, y)
		} else {
			path.LineTo(x, y)
		}
	}
	path.Close()
}

func valueRange(values []float64, cmin, cmax *float64) (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		min, max = math.Min(min, v), math.Max(max, v)
	}
	if cmin != nil {
		min = *cmin
	}
	if cmax != nil {
		max = *cmax
	}
	return min, max
}

var namedColors = map[string]drawing.Color{
	"red":   drawing.ColorFromHex("ff0000"),
	"blue":  drawing.ColorFromHex("0000ff"),
	"green": drawing.ColorFromHex("008000"),
	"white": drawing.ColorFromHex("ffffff"),
	"black": drawing.ColorFromHex("000000"),
}

// parseColor understands "#rrggbb", "rgb(...)", "rgba(...)" and a few names.
// Anything else is drawn gray.
func parseColor(s string) color.Color {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	if strings.HasPrefix(s, "#") && len(s) == 7 {
		return drawing.ColorFromHex(s[1:])
	}
	if strings.HasPrefix(s, "rgb") {
		open, closing := strings.IndexByte(s, '('), strings.IndexByte(s, ')')
		if open > 0 && closing > open {
			parts := strings.Split(s[open+1:closing], ",")
			if len(parts) == 3 || len(parts) == 4 {
				ch := make([]float64, 4)
				ch[3] = 1
				for i, p := range parts {
					v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
					if err != nil {
						return drawing.ColorFromHex("808080")
					}
					ch[i] = v
				}
				return color.NRGBA{R: clampByte(ch[0]), G: clampByte(ch[1]), B: clampByte(ch[2]), A: clampByte(ch[3] * 255)}
			}
		}
	}
	return drawing.ColorFromHex("808080")
}

func clampByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
