package session

import (
	"time"

	"github.com/jwulff/linkup-go/internal/librelink"
)

// State holds the current credential. There is one slot, overwritten on each
// login and cleared whenever the credential may be stale. It is owned by a
// single Session and not safe for concurrent use.
type State struct {
	cred librelink.Credential
	now  func() time.Time
}

// NewState returns an empty, invalid state.
func NewState() *State {
	return &State{now: time.Now}
}

// IsValid reports whether a credential is held and has not expired.
func (s *State) IsValid() bool {
	return s.cred.ValidAt(s.now())
}

// Clear drops the credential, forcing a login on the next fetch.
func (s *State) Clear() {
	s.cred = librelink.Credential{}
}

// Set replaces the credential.
func (s *State) Set(cred librelink.Credential) {
	s.cred = cred
}

// Token returns the bearer token, if any.
func (s *State) Token() (string, bool) {
	return s.cred.Token, s.cred.Token != ""
}

// Credential returns the held credential.
func (s *State) Credential() librelink.Credential {
	return s.cred
}
