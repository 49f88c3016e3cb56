// Package render turns a measurement into the status shown to the user.
package render

import (
	"fmt"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
	"github.com/jwulff/linkup-go/internal/config"
)

// Placeholder is shown when no reading is available.
const Placeholder = "---"

// Warning messages.
const (
	WarningLow  = "Low blood glucose!"
	WarningHigh = "High blood glucose!"
)

// DisplayState is everything the shell needs to draw the status item.
type DisplayState struct {
	Text       string  `json:"text"`
	Glyph      string  `json:"glyph,omitempty"`
	Warning    string  `json:"warning,omitempty"`
	Background Tone    `json:"background,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
	ValueMgdl  float64 `json:"value_mgdl,omitempty"`
}

// Absent is the display for a missing reading.
var Absent = DisplayState{Text: Placeholder}

// Available reports whether a reading is shown.
func (d DisplayState) Available() bool {
	return d.Text != Placeholder && d.Text != ""
}

// String returns the status line, e.g. "95.0 mg/dL →".
func (d DisplayState) String() string {
	if d.Glyph == "" {
		return d.Text
	}
	return d.Text + " " + d.Glyph
}

// Present maps a measurement to a display state. A nil measurement or a
// non-positive value yields Absent; the same guard gates every alert.
func Present(m *bloodsugar.Measurement, cfg config.Config) DisplayState {
	if m == nil || m.ValueInMgPerDl <= 0 {
		return Absent
	}

	unit := cfg.GlucoseUnits
	if !unit.Valid() {
		unit = bloodsugar.UnitMgdl
	}

	d := DisplayState{
		Text:      fmt.Sprintf("%.1f %s", bloodsugar.Convert(m.ValueInMgPerDl, unit), unit.Label()),
		Glyph:     bloodsugar.MapTrendGlyph(m.TrendArrow),
		Timestamp: m.Timestamp,
		ValueMgdl: m.ValueInMgPerDl,
	}

	switch {
	case m.IsLow && cfg.Warnings.Low:
		d.Warning = WarningLow
	case m.IsHigh && cfg.Warnings.High:
		d.Warning = WarningHigh
	}

	if cfg.Warnings.Background {
		d.Background = ToneFor(m.MeasurementColor)
	}
	return d
}
