package metric

import "strings"

// Channel describes a telemetry quantity that can color a racing line and
// the physical column names it may appear under.
type Channel struct {
	Name       string
	Canonical  string
	Aliases    []string
	Contains   []string
	Label      string
	Colorscale string
	Rescale    bool
}

var (
	Speed = Channel{
		Name:       "Speed",
		Canonical:  "Speed",
		Contains:   []string{"speed"},
		Label:      "Speed (km/h)",
		Colorscale: "Viridis",
	}
	Throttle = Channel{
		Name:       "Throttle",
		Canonical:  "Throttle",
		Contains:   []string{"throttle"},
		Label:      "Throttle (%)",
		Colorscale: "Greens",
	}
	Brake = Channel{
		Name:       "Brake",
		Canonical:  "Brake",
		Aliases:    []string{"BR"},
		Contains:   []string{"brake"},
		Label:      "Brake (%)",
		Colorscale: "Reds",
		Rescale:    true,
	}
	Gear = Channel{
		Name:       "Gear",
		Canonical:  "nGear",
		Aliases:    []string{"Gear"},
		Contains:   []string{"gear"},
		Label:      "Gear",
		Colorscale: "Plasma",
	}
	DRS = Channel{
		Name:       "DRS",
		Canonical:  "DRS",
		Aliases:    []string{"drs"},
		Contains:   []string{"drs"},
		Label:      "DRS",
		Colorscale: "Blues",
		Rescale:    true,
	}
)

var channels = []Channel{Speed, Throttle, Brake, Gear, DRS}

// Channels lists every known channel in display order.
func Channels() []Channel {
	return append([]Channel(nil), channels...)
}

// Parse finds a channel by name, ignoring case.
func Parse(name string) (Channel, bool) {
	name = strings.TrimSpace(name)
	for _, ch := range channels {
		if strings.EqualFold(ch.Name, name) {
			return ch, true
		}
	}
	return Channel{}, false
}

// ParseOrSpeed is Parse with Speed as the fallback for unknown names.
func ParseOrSpeed(name string) Channel {
	if ch, ok := Parse(name); ok {
		return ch
	}
	return Speed
}

// Lookup picks the column for ch among columns: the canonical name, then the
// exact aliases in order, then the first column whose lower-cased name
// contains one of the substrings.
func (ch Channel) Lookup(columns []string) (string, bool) {
	for _, want := range append([]string{ch.Canonical}, ch.Aliases...) {
		for _, col := range columns {
			if col == want {
				return col, true
			}
		}
	}
	for _, col := range columns {
		lower := strings.ToLower(col)
		for _, sub := range ch.Contains {
			if strings.Contains(lower, sub) {
				return col, true
			}
		}
	}
	return "", false
}
