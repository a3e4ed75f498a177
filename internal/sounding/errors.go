package sounding

import (
	"errors"
	"fmt"
)

var (
	// ErrTTAARequired is returned when no TTAA text was supplied at all.
	ErrTTAARequired = errors.New("TTAA data is required")

	// ErrTooShort means a report has too few groups to carry a header and station.
	ErrTooShort = errors.New("report too short")

	// ErrHeader means the YYGGI group could not be decoded.
	ErrHeader = errors.New("malformed day/hour group")

	// ErrSurfaceMarker means a TTBB report has no 00PPP surface group.
	ErrSurfaceMarker = errors.New("surface marker not found")

	// ErrIdentifier means the report does not start with the expected part identifier.
	// Decoding continues; the entry is a warning.
	ErrIdentifier = errors.New("unexpected part identifier")

	// ErrStationMismatch means a TTBB part was paired with the TTAA of another station.
	ErrStationMismatch = errors.New("station differs from TTAA")
)

// DecodeError reports a structural problem in one part of a report.
type DecodeError struct {
	Part   string // TTAA or TTBB
	Err    error  // one of the sentinel errors above
	Detail string // offending group or extra context, may be empty
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Part, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Part, e.Err, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError builds a DecodeError for part.
func NewDecodeError(part string, err error, detail string) *DecodeError {
	return &DecodeError{Part: part, Err: err, Detail: detail}
}

// IsWarning reports whether err only flags a recoverable oddity.
func IsWarning(err error) bool {
	return errors.Is(err, ErrIdentifier) || errors.Is(err, ErrStationMismatch)
}
