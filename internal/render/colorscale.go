package render

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

type Stop struct {
	At    float64
	Color drawing.Color
}

// Colorscale maps [0, 1] onto a piecewise linear color ramp.
type Colorscale struct {
	Name  string
	Stops []Stop
}

func stops(hex ...string) []Stop {
	out := make([]Stop, len(hex))
	for i, h := range hex {
		out[i] = Stop{At: float64(i) / float64(len(hex)-1), Color: drawing.ColorFromHex(h)}
	}
	return out
}

var colorscales = map[string]Colorscale{
	"Viridis": {Name: "Viridis", Stops: stops(
		"440154", "48186a", "472d7b", "424086", "3b528b", "33638d", "2c728e", "26828e", "21918c",
		"1fa088", "28ae80", "3fbc73", "5ec962", "84d44b", "addc30", "d8e219", "fde725")},
	"Plasma": {Name: "Plasma", Stops: stops(
		"0d0887", "46039f", "7201a8", "9c179e", "bd3786", "d8576b", "ed7953", "fb9f3a", "fdca26", "f0f921")},
	"Greens": {Name: "Greens", Stops: stops(
		"00441b", "006d2c", "238b45", "41ab5d", "74c476", "a1d99b", "c7e9c0", "e5f5e0", "f7fcf5")},
	"Reds": {Name: "Reds", Stops: []Stop{
		{0, drawing.ColorFromHex("dcdcdc")},
		{0.2, drawing.ColorFromHex("f5c39d")},
		{0.4, drawing.ColorFromHex("f5a069")},
		{1, drawing.ColorFromHex("b20a1c")},
	}},
	"Blues": {Name: "Blues", Stops: []Stop{
		{0, drawing.ColorFromHex("050aac")},
		{0.35, drawing.ColorFromHex("283cbe")},
		{0.5, drawing.ColorFromHex("4664f5")},
		{0.6, drawing.ColorFromHex("5a78f5")},
		{0.7, drawing.ColorFromHex("6a89f7")},
		{1, drawing.ColorFromHex("dcdcdc")},
	}},
}

// LookupColorscale returns the named scale, falling back to Viridis.
func LookupColorscale(name string) Colorscale {
	if cs, ok := colorscales[name]; ok {
		return cs
	}
	return colorscales["Viridis"]
}

// At returns the color at position t, clamped to [0, 1].
func (c Colorscale) At(t float64) drawing.Color {
	if len(c.Stops) == 0 {
		return drawing.ColorFromHex("000000")
	}
	if math.IsNaN(t) || t <= c.Stops[0].At {
		return c.Stops[0].Color
	}
	last := c.Stops[len(c.Stops)-1]
	if t >= last.At {
		return last.Color
	}
	for i := 1; i < len(c.Stops); i++ {
		hi := c.Stops[i]
		if t > hi.At {
			continue
		}
		lo := c.Stops[i-1]
		f := (t - lo.At) / (hi.At - lo.At)
		return drawing.Color{
			R: lerp(lo.Color.R, hi.Color.R, f),
			G: lerp(lo.Color.G, hi.Color.G, f),
			B: lerp(lo.Color.B, hi.Color.B, f),
			A: 255,
		}
	}
	return last.Color
}

// Map places v within [min, max] on the scale. A flat range maps to the
// lowest color.
func (c Colorscale) Map(v, min, max float64) drawing.Color {
	if max <= min {
		return c.At(0)
	}
	return c.At((v - min) / (max - min))
}

// MarshalJSON writes the scale as [[position, "#rrggbb"], ...].
func (c Colorscale) MarshalJSON() ([]byte, error) {
	out := make([][2]any, len(c.Stops))
	for i, s := range c.Stops {
		out[i] = [2]any{s.At, Hex(s.Color)}
	}
	return json.Marshal(out)
}

func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}
