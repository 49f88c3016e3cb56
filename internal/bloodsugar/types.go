package bloodsugar

import (
	"math"
	"time"
)

// TrendArrow is the LibreLinkUp trend code (1-5).
type TrendArrow int

const (
	TrendFalling       TrendArrow = 1
	TrendFallingSlowly TrendArrow = 2
	TrendFlat          TrendArrow = 3
	TrendRisingSlowly  TrendArrow = 4
	TrendRising        TrendArrow = 5
)

// UnknownTrendGlyph is shown for any trend code outside 1-5.
const UnknownTrendGlyph = "??"

// TrendGlyphs maps LibreLinkUp trend codes to display arrows.
var TrendGlyphs = map[TrendArrow]string{
	TrendFalling:       "↓",
	TrendFallingSlowly: "↘",
	TrendFlat:          "→",
	TrendRisingSlowly:  "↗",
	TrendRising:        "↑",
}

// MapTrendGlyph converts a trend code to a display arrow.
func MapTrendGlyph(trend TrendArrow) string {
	if glyph, ok := TrendGlyphs[trend]; ok {
		return glyph
	}
	return UnknownTrendGlyph
}

// MeasurementColor is the service's own severity classification (0-4).
type MeasurementColor int

const (
	ColorUnknown  MeasurementColor = 0
	ColorInRange  MeasurementColor = 1
	ColorElevated MeasurementColor = 2
	ColorHigh     MeasurementColor = 3
	ColorCritical MeasurementColor = 4
)

// Unit is the configured display unit.
type Unit string

const (
	UnitMgdl Unit = "milligrams"
	UnitMmol Unit = "millimolar"
)

// Label returns the unit suffix shown next to a value.
func (u Unit) Label() string {
	if u == UnitMmol {
		return "mmol/L"
	}
	return "mg/dL"
}

// Valid reports whether u is a supported unit.
func (u Unit) Valid() bool {
	return u == UnitMgdl || u == UnitMmol
}

// MmolFactor converts mg/dL to mmol/L.
const MmolFactor = 18.0

// TimestampLayout is the layout of Measurement.Timestamp ("10/17/2026 6:27:41 PM").
const TimestampLayout = "1/2/2006 3:04:05 PM"

// Measurement is the latest glucose reading as returned by LibreLinkUp.
type Measurement struct {
	FactoryTimestamp string           `json:"FactoryTimestamp"`
	Timestamp        string           `json:"Timestamp"`
	Type             int              `json:"type"`
	ValueInMgPerDl   float64          `json:"ValueInMgPerDl"`
	TrendArrow       TrendArrow       `json:"TrendArrow"`
	TrendMessage     string           `json:"TrendMessage,omitempty"`
	MeasurementColor MeasurementColor `json:"MeasurementColor"`
	GlucoseUnits     int              `json:"GlucoseUnits"`
	Value            float64          `json:"Value"`
	IsHigh           bool             `json:"isHigh"`
	IsLow            bool             `json:"isLow"`
}

// Time parses the measurement timestamp. FactoryTimestamp (UTC) is preferred
// since Timestamp is in the sensor's local time.
func (m Measurement) Time() (time.Time, bool) {
	if t, err := time.Parse(TimestampLayout, m.FactoryTimestamp); err == nil {
		return t.UTC(), true
	}
	if t, err := time.ParseInLocation(TimestampLayout, m.Timestamp, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// MgdlToMmol converts mg/dL to mmol/L, rounded to one decimal.
func MgdlToMmol(mgdl float64) float64 {
	return RoundTenth(mgdl / MmolFactor)
}

// RoundTenth rounds half away from zero to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// Convert returns mgdl expressed in unit, rounded to one decimal.
func Convert(mgdl float64, unit Unit) float64 {
	if unit == UnitMmol {
		return MgdlToMmol(mgdl)
	}
	return RoundTenth(mgdl)
}
