package librelink

import (
	"encoding/json"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
)

// Connection is a patient account shared with the logged-in user.
type Connection struct {
	PatientID          string                  `json:"patientId"`
	FirstName          string                  `json:"firstName"`
	LastName           string                  `json:"lastName"`
	GlucoseMeasurement *bloodsugar.Measurement `json:"glucoseMeasurement,omitempty"`
}

// Name returns the patient's display name.
func (c Connection) Name() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status int       `json:"status"`
	Data   loginData `json:"data"`
}

type loginData struct {
	AuthTicket *Credential `json:"authTicket"`
	Redirect   bool        `json:"redirect"`
	Region     string      `json:"region"`
}

type connectionsResponse struct {
	Status int          `json:"status"`
	Data   []Connection `json:"data"`
}

type graphResponse struct {
	Status int       `json:"status"`
	Data   graphData `json:"data"`
}

// graphData keeps the historical series and sensor fields raw; only the
// latest measurement is decoded.
type graphData struct {
	Connection         Connection              `json:"connection"`
	GlucoseMeasurement *bloodsugar.Measurement `json:"glucoseMeasurement"`
	ActiveSensors      json.RawMessage         `json:"activeSensors,omitempty"`
	GraphData          json.RawMessage         `json:"graphData,omitempty"`
}
