package librelink

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Credential is the LibreLinkUp auth ticket: a bearer token with an absolute
// expiry in Unix seconds.
type Credential struct {
	Token    string `json:"token"`
	Expires  int64  `json:"expires"`
	Duration int64  `json:"duration"`
}

// ExpiresAt returns the expiry as a time. The zero time means unset.
func (c Credential) ExpiresAt() time.Time {
	if c.Expires <= 0 {
		return time.Time{}
	}
	return time.Unix(c.Expires, 0)
}

// ValidAt reports whether the credential is usable at now. Expiry exactly at
// now counts as expired.
func (c Credential) ValidAt(now time.Time) bool {
	if c.Token == "" || c.Expires <= 0 {
		return false
	}
	return now.Unix() < c.Expires
}

// OAuth2Token converts the credential for use with SetAuthHeader.
func (c Credential) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: c.Token,
		TokenType:   "Bearer",
		Expiry:      c.ExpiresAt(),
	}
}

// withTokenExpiry fills Expires from the token's exp claim when the service
// did not send one. The signature is not verified; the claim is only used to
// schedule renewal.
func (c Credential) withTokenExpiry() Credential {
	if c.Expires > 0 || c.Token == "" {
		return c
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, &claims); err != nil {
		return c
	}
	if claims.ExpiresAt == nil {
		return c
	}
	c.Expires = claims.ExpiresAt.Unix()
	return c
}
