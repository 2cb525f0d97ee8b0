package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and providers return these
// (optionally wrapped) so services can translate them into domain errors:
// - ErrNotFound: key or record does not exist (includes expired cache entries)
// - ErrConflict: record already exists at that position
// - ErrUnavailable: backing service could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
