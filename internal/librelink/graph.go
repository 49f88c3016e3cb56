package librelink

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
)

// FetchLatest returns the latest glucose measurement for a patient.
func (c *Client) FetchLatest(ctx context.Context, region Region, cred Credential, patientID string) (bloodsugar.Measurement, error) {
	c.log(ctx).Info().Msg("Getting glucose measurements")

	endpoint, err := c.endpoint(region, connectionsPath+"/"+url.PathEscape(patientID)+"/graph")
	if err != nil {
		return bloodsugar.Measurement{}, err
	}

	var resp graphResponse
	if err := c.do(ctx, http.MethodGet, endpoint, &cred, nil, &resp); err != nil {
		return bloodsugar.Measurement{}, fmt.Errorf("graph: %w", err)
	}

	m := resp.Data.Connection.GlucoseMeasurement
	if m == nil {
		m = resp.Data.GlucoseMeasurement
	}
	if m == nil {
		return bloodsugar.Measurement{}, fmt.Errorf("%w: graph response has no glucoseMeasurement", ErrNetwork)
	}
	return *m, nil
}
