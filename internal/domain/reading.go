package domain

import (
	"time"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
)

// Reading is a polled measurement as recorded locally.
type Reading struct {
	PatientID        string
	Timestamp        time.Time
	RawTimestamp     string
	ValueMgdl        float64
	TrendArrow       bloodsugar.TrendArrow
	MeasurementColor bloodsugar.MeasurementColor
	IsHigh           bool
	IsLow            bool
	RecordedAt       time.Time
}

// NewReading builds a record from a measurement. When the measurement
// timestamp cannot be parsed the record is stamped with recordedAt.
func NewReading(patientID string, m bloodsugar.Measurement, recordedAt time.Time) *Reading {
	ts, ok := m.Time()
	if !ok {
		ts = recordedAt
	}
	return &Reading{
		PatientID:        patientID,
		Timestamp:        ts,
		RawTimestamp:     m.Timestamp,
		ValueMgdl:        m.ValueInMgPerDl,
		TrendArrow:       m.TrendArrow,
		MeasurementColor: m.MeasurementColor,
		IsHigh:           m.IsHigh,
		IsLow:            m.IsLow,
		RecordedAt:       recordedAt,
	}
}

// Age returns how long ago the reading was taken.
func (r *Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}
