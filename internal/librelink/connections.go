package librelink

import (
	"context"
	"fmt"
	"net/http"
)

// Connections lists the patients shared with the logged-in user, in service
// order.
func (c *Client) Connections(ctx context.Context, region Region, cred Credential) ([]Connection, error) {
	url, err := c.endpoint(region, connectionsPath)
	if err != nil {
		return nil, err
	}

	var resp connectionsResponse
	if err := c.do(ctx, http.MethodGet, url, &cred, nil, &resp); err != nil {
		return nil, fmt.Errorf("connections: %w", err)
	}
	return resp.Data, nil
}

// ResolveConnection lists connections and picks one with SelectConnection.
func (c *Client) ResolveConnection(ctx context.Context, region Region, cred Credential, preferredID string) (Connection, error) {
	c.log(ctx).Info().Msg("Getting LibreLink Up connection")

	conns, err := c.Connections(ctx, region, cred)
	if err != nil {
		return Connection{}, err
	}

	if len(conns) > 1 {
		c.log(ctx).Debug().Int("count", len(conns)).Msg("Found LibreLink Up connections")
		for i, conn := range conns {
			c.log(ctx).Debug().Msgf("[%d] %s (Patient-ID: %s)", i+1, conn.Name(), conn.PatientID)
		}
	}

	selected, defaulted, err := SelectConnection(conns, preferredID)
	if err != nil {
		return Connection{}, err
	}
	if defaulted {
		c.log(ctx).Warn().
			Int("count", len(conns)).
			Msg("No Patient-ID configured, using the first connection; set one to pin the choice")
	}

	c.log(ctx).Info().
		Str("patient_id", selected.PatientID).
		Msgf("-> The following connection will be used: %s", selected.Name())
	return selected, nil
}

// SelectConnection applies the selection policy:
//   - an empty list fails with ErrNoConnections
//   - a single connection is always used, whatever preferredID says
//   - with several and no preferredID the first one is used and defaulted is true
//   - otherwise the exact preferredID match is used, or ErrPreferredNotFound
func SelectConnection(conns []Connection, preferredID string) (selected Connection, defaulted bool, err error) {
	switch {
	case len(conns) == 0:
		return Connection{}, false, ErrNoConnections
	case len(conns) == 1:
		return conns[0], false, nil
	case preferredID == "":
		return conns[0], true, nil
	}

	for _, conn := range conns {
		if conn.PatientID == preferredID {
			return conn, false, nil
		}
	}
	return Connection{}, false, fmt.Errorf("%w: %q", ErrPreferredNotFound, preferredID)
}
