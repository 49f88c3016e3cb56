package render

import "github.com/jwulff/linkup-go/internal/bloodsugar"

// Tone is the status background colour requested from the shell.
type Tone string

const (
	ToneNone    Tone = ""
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
)

// ToneFor maps the service's measurement colour to a background tone.
func ToneFor(color bloodsugar.MeasurementColor) Tone {
	switch color {
	case bloodsugar.ColorElevated, bloodsugar.ColorHigh:
		return ToneWarning
	case bloodsugar.ColorCritical:
		return ToneError
	default:
		return ToneNone
	}
}
