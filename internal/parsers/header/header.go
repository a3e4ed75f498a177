// Package header reads section 1 (identifier, YYGGI and station) of a TEMP report part.
package header

import (
	"sounding_parser/internal/groups"
	"sounding_parser/internal/patterns"
	"sounding_parser/internal/sounding"
)

// Header is the decoded section 1 of a report part.
type Header struct {
	Station string `json:"station,omitempty"`
	Day     *int   `json:"day,omitempty"`
	Hour    *int   `json:"hour,omitempty"`
}

// Decode reads the identifier at index 0, the day/hour group at index 1 and
// the station at index 2. A wrong identifier is reported as a warning and a
// malformed day/hour group as ErrHeader. Missing groups are left to the
// caller, which knows how many groups the part needs.
func Decode(part string, g groups.Groups) (Header, []error) {
	var (
		h    Header
		errs []error
	)

	if id, ok := g.At(0); ok && id != part {
		errs = append(errs, sounding.NewDecodeError(part, sounding.ErrIdentifier, id))
	}

	if yyggi, ok := g.At(1); ok {
		if day, hour, ok := patterns.ParseHeader(yyggi); ok {
			h.Day = &day
			h.Hour = &hour
		} else {
			errs = append(errs, sounding.NewDecodeError(part, sounding.ErrHeader, yyggi))
		}
	}

	if station, ok := g.At(2); ok {
		h.Station = station
	}

	return h, errs
}
