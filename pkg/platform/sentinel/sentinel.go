package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and gateways return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: no certification, owner, config row or allow-list entry
//   - ErrConflict: a write collided with an existing row (duplicate id)
//   - ErrUnavailable: a backing service (database, cache, broker) is down
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
