package librelink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Login exchanges username and password for a credential. It does not retry
// against another region on a redirect; the caller must change configuration.
func (c *Client) Login(ctx context.Context, region Region, username, password string) (Credential, error) {
	url, err := c.endpoint(region, loginPath)
	if err != nil {
		return Credential{}, err
	}

	c.log(ctx).Info().Str("region", string(region.Normalize())).Msg("Logging in to LibreLink Up")

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, url, nil, loginRequest{Email: username, Password: password}, &resp); err != nil {
		return Credential{}, fmt.Errorf("login: %w", err)
	}

	if resp.Status != 0 {
		return Credential{}, fmt.Errorf("%w: non-zero status %d", ErrRejected, resp.Status)
	}

	if resp.Data.Redirect && resp.Data.Region != "" {
		return Credential{}, &WrongRegionError{Region: Region(strings.ToUpper(resp.Data.Region))}
	}

	if resp.Data.AuthTicket == nil || resp.Data.AuthTicket.Token == "" {
		return Credential{}, fmt.Errorf("%w: response carried no auth ticket", ErrRejected)
	}

	c.log(ctx).Info().Msg("Logged in to LibreLink Up")
	return resp.Data.AuthTicket.withTokenExpiry(), nil
}
