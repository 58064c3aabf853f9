package match

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the match, or the owner's live match, does not exist.
	ErrNotFound = errors.New("match not found")
	// ErrForbidden indicates the caller does not own the match.
	ErrForbidden = errors.New("match belongs to another user")
	// ErrStatusConflict indicates the match is not in the required status.
	ErrStatusConflict = errors.New("match status conflict")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariant indicates stored data breaks a structural invariant, such
	// as a match without its state row.
	ErrInvariant = errors.New("match invariant violated")
)

// VersionConflictError reports a lost compare-and-swap. It carries the
// authoritative row so the caller can reconcile without another read.
type VersionConflictError struct {
	ExpectedVersion int64
	CurrentVersion  int64
	CurrentState    json.RawMessage
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, current %d", e.ExpectedVersion, e.CurrentVersion)
}
