package librelink

import (
	"errors"
	"fmt"
)

// Failure reasons. Every error returned by Client matches exactly one of these
// with errors.Is.
var (
	ErrNetwork           = errors.New("network error")
	ErrRejected          = errors.New("login rejected")
	ErrWrongRegion       = errors.New("wrong region")
	ErrNoConnections     = errors.New("no connections found")
	ErrPreferredNotFound = errors.New("preferred connection not found")
	ErrUnknownRegion     = errors.New("unknown region")
)

// WrongRegionError reports that the account lives in another region.
type WrongRegionError struct {
	Region Region
}

func (e *WrongRegionError) Error() string {
	return fmt.Sprintf("logged in to the wrong region, switch to %q", string(e.Region))
}

// Is makes errors.Is(err, ErrWrongRegion) succeed.
func (e *WrongRegionError) Is(target error) bool {
	return target == ErrWrongRegion
}

// StatusError is a non-2xx HTTP response. It matches ErrNetwork.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNetwork
}

// Reason returns a short label for the failure class of err, for logs and
// metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrWrongRegion):
		return "wrong_region"
	case errors.Is(err, ErrNoConnections):
		return "none_found"
	case errors.Is(err, ErrPreferredNotFound):
		return "preferred_not_found"
	case errors.Is(err, ErrUnknownRegion):
		return "unknown_region"
	default:
		return "network"
	}
}
