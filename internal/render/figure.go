package render

import (
	"fmt"

	"f1telemetry/internal/compose"
	"f1telemetry/internal/metric"
	"f1telemetry/internal/model"
)

// Figure is a chart description in plotly's JSON figure layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type       string    `json:"type"`
	Mode       string    `json:"mode"`
	Name       string    `json:"name,omitempty"`
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
	XAxis      string    `json:"xaxis,omitempty"`
	YAxis      string    `json:"yaxis,omitempty"`
	Marker     *Marker   `json:"marker,omitempty"`
	Line       *Line     `json:"line,omitempty"`
	ShowLegend *bool     `json:"showlegend,omitempty"`
}

type Marker struct {
	Size       float64     `json:"size,omitempty"`
	Symbol     string      `json:"symbol,omitempty"`
	Color      any         `json:"color,omitempty"`
	Colorscale *Colorscale `json:"colorscale,omitempty"`
	CMin       *float64    `json:"cmin,omitempty"`
	CMax       *float64    `json:"cmax,omitempty"`
	ShowScale  bool        `json:"showscale,omitempty"`
	ColorBar   *ColorBar   `json:"colorbar,omitempty"`
	Line       *Line       `json:"line,omitempty"`
}

type ColorBar struct {
	Title     Text    `json:"title"`
	Len       float64 `json:"len,omitempty"`
	Thickness float64 `json:"thickness,omitempty"`
}

type Line struct {
	Width float64 `json:"width,omitempty"`
	Color string  `json:"color,omitempty"`
	Dash  string  `json:"dash,omitempty"`
}

type Text struct {
	Text string `json:"text"`
}

type Layout struct {
	Title       Text         `json:"title"`
	Width       int          `json:"width,omitempty"`
	Height      int          `json:"height,omitempty"`
	Template    string       `json:"template,omitempty"`
	ShowLegend  bool         `json:"showlegend"`
	XAxis       *Axis        `json:"xaxis,omitempty"`
	YAxis       *Axis        `json:"yaxis,omitempty"`
	XAxis2      *Axis        `json:"xaxis2,omitempty"`
	YAxis2      *Axis        `json:"yaxis2,omitempty"`
	XAxis3      *Axis        `json:"xaxis3,omitempty"`
	YAxis3      *Axis        `json:"yaxis3,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

type Axis struct {
	Title       Text      `json:"title"`
	ScaleAnchor string    `json:"scaleanchor,omitempty"`
	ScaleRatio  float64   `json:"scaleratio,omitempty"`
	Domain      []float64 `json:"domain,omitempty"`
	Anchor      string    `json:"anchor,omitempty"`
}

type Annotation struct {
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	XRef      string  `json:"xref"`
	YRef      string  `json:"yref"`
	ShowArrow bool    `json:"showarrow"`
}

type Options struct {
	Width  int
	Height int
}

const (
	startColor   = "red"
	trackColor   = "rgba(128,128,128,0.3)"
	positionX    = "X Position (m)"
	positionY    = "Y Position (m)"
	startMarker  = "star"
	startTraceID = "Start/Finish"
)

// RacingLineTitle names a racing line chart for a channel and driver.
func RacingLineTitle(ch metric.Channel, driver string) string {
	switch ch.Name {
	case metric.Speed.Name:
		return fmt.Sprintf("Speed Heatmap - %s", driver)
	case metric.Brake.Name:
		return fmt.Sprintf("Brake Zones - %s", driver)
	case metric.Gear.Name:
		return fmt.Sprintf("Gear Usage - %s", driver)
	case metric.DRS.Name:
		return fmt.Sprintf("DRS Map - %s", driver)
	}
	return fmt.Sprintf("%s - %s", ch.Name, driver)
}

// RacingLine draws the lap's path colored point by point with the resolved
// channel, plus a start marker at the first sample.
func RacingLine(res metric.Result, title string, opts Options) Figure {
	cs := LookupColorscale(res.Colorscale)
	cmin, cmax := res.Min, res.Max
	show := true
	fig := Figure{
		Data: []Trace{
			{
				Type: "scatter",
				Mode: "markers+lines",
				Name: "Racing Line",
				X:    res.X,
				Y:    res.Y,
				Marker: &Marker{
					Size:       8,
					Color:      res.Values,
					Colorscale: &cs,
					CMin:       &cmin,
					CMax:       &cmax,
					ShowScale:  true,
					ColorBar:   &ColorBar{Title: Text{Text: res.Label}, Len: 0.7, Thickness: 25},
					Line:       &Line{Width: 0.5, Color: "rgba(0,0,0,0.3)"},
				},
				Line: &Line{Width: 4, Color: trackColor},
			},
			{
				Type:       "scatter",
				Mode:       "markers",
				Name:       startTraceID,
				X:          res.X[:1],
				Y:          res.Y[:1],
				Marker:     &Marker{Size: 30, Symbol: startMarker, Color: startColor, Line: &Line{Width: 3, Color: "white"}},
				ShowLegend: &show,
			},
		},
		Layout: trackLayout(title, opts),
	}
	return fig
}

// Comparison draws each overlay trace in its assigned color.
func Comparison(ov compose.Overlay, title string, opts Options) Figure {
	fig := Figure{Layout: trackLayout(title, opts)}
	for _, tr := range ov.Traces {
		line := &Line{Width: 5, Color: tr.Color}
		if tr.Dashed {
			line.Dash = "dash"
		}
		fig.Data = append(fig.Data, Trace{
			Type:   "scatter",
			Mode:   "lines+markers",
			Name:   tr.Label,
			X:      tr.Path.X,
			Y:      tr.Path.Y,
			Marker: &Marker{Size: 6, Color: tr.Color},
			Line:   line,
		})
	}
	return fig
}

// SectorPanel pairs a sector's title with its line color.
type SectorPanel struct {
	Title string
	Name  string
	Color string
}

var SectorPanels = [3]SectorPanel{
	{Title: "Sector 1 Delta", Name: "Sector 1", Color: "red"},
	{Title: "Sector 2 Delta", Name: "Sector 2", Color: "blue"},
	{Title: "Sector 3 Delta", Name: "Sector 3", Color: "green"},
}

// SectorSeries splits deltas into the lap axis and one series per sector.
func SectorSeries(deltas []model.SectorDelta) (laps []float64, sectors [3][]float64) {
	for _, d := range deltas {
		laps = append(laps, float64(d.LapNumber))
		sectors[0] = append(sectors[0], d.S1)
		sectors[1] = append(sectors[1], d.S2)
		sectors[2] = append(sectors[2], d.S3)
	}
	return laps, sectors
}

// SectorDeltas stacks one panel per sector, sharing the lap number axis.
func SectorDeltas(driver string, deltas []model.SectorDelta, opts Options) Figure {
	laps, sectors := SectorSeries(deltas)
	domains := [3][]float64{{0.7333, 1}, {0.3667, 0.6333}, {0, 0.2667}}
	axis := func(i int) (string, string) {
		if i == 0 {
			return "x", "y"
		}
		return fmt.Sprintf("x%d", i+1), fmt.Sprintf("y%d", i+1)
	}
	fig := Figure{
		Layout: Layout{
			Title:    Text{Text: fmt.Sprintf("Sector-wise Lap Delta - %s", driver)},
			Width:    opts.Width,
			Height:   opts.Height,
			Template: "plotly_white",
		},
	}
	axes := [3][2]**Axis{
		{&fig.Layout.XAxis, &fig.Layout.YAxis},
		{&fig.Layout.XAxis2, &fig.Layout.YAxis2},
		{&fig.Layout.XAxis3, &fig.Layout.YAxis3},
	}
	for i, panel := range SectorPanels {
		xa, ya := axis(i)
		fig.Data = append(fig.Data, Trace{
			Type:   "scatter",
			Mode:   "lines+markers",
			Name:   panel.Name,
			X:      laps,
			Y:      sectors[i],
			XAxis:  xa,
			YAxis:  ya,
			Marker: &Marker{Size: 6},
			Line:   &Line{Width: 2, Color: panel.Color},
		})
		x := &Axis{Anchor: ya}
		if i == len(SectorPanels)-1 {
			x.Title = Text{Text: "Lap Number"}
		}
		*axes[i][0] = x
		*axes[i][1] = &Axis{Title: Text{Text: "Delta (seconds)"}, Domain: domains[i], Anchor: xa}
		fig.Layout.Annotations = append(fig.Layout.Annotations, Annotation{
			Text: panel.Title, X: 0.5, Y: domains[i][1], XRef: "paper", YRef: "paper",
		})
	}
	return fig
}

func trackLayout(title string, opts Options) Layout {
	return Layout{
		Title:      Text{Text: title},
		Width:      opts.Width,
		Height:     opts.Height,
		Template:   "plotly_white",
		ShowLegend: true,
		XAxis:      &Axis{Title: Text{Text: positionX}},
		YAxis:      &Axis{Title: Text{Text: positionY}, ScaleAnchor: "x", ScaleRatio: 1},
	}
}
