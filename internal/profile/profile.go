// Package profile assembles decoded TTAA and TTBB parts into one sounding profile.
package profile

import (
	"strings"

	"sounding_parser/internal/parsers/ttaa"
	"sounding_parser/internal/parsers/ttbb"
	"sounding_parser/internal/sounding"
)

// Decode decodes a TTAA report and an optional TTBB report into a profile.
//
// Empty ttaaText is the only case that returns a nil profile, together with
// sounding.ErrTTAARequired. Every other problem is listed in the returned
// errors alongside a best-effort profile.
func Decode(ttaaText, ttbbText string) (*sounding.Profile, []error) {
	if strings.TrimSpace(ttaaText) == "" {
		return nil, []error{sounding.ErrTTAARequired}
	}

	aa := ttaa.Decode(ttaaText)

	var bb *ttbb.Section
	if strings.TrimSpace(ttbbText) != "" {
		s := ttbb.Decode(ttbbText)
		bb = &s
	}

	return Assemble(aa, bb)
}

// Assemble copies the decoded parts into a profile. bb may be nil. Levels keep
// the order their decoder produced.
func Assemble(aa ttaa.Section, bb *ttbb.Section) (*sounding.Profile, []error) {
	p := &sounding.Profile{
		Station:     aa.Station,
		Day:         aa.Day,
		Hour:        aa.Hour,
		Surface:     aa.Surface,
		Mandatory:   aa.Mandatory,
		Significant: []sounding.Level{},
		Tropopause:  aa.Tropopause,
		MaxWind:     aa.MaxWind,
	}
	if p.Mandatory == nil {
		p.Mandatory = []sounding.Level{}
	}

	errs := append([]error(nil), aa.Errors...)

	if bb != nil {
		if bb.Significant != nil {
			p.Significant = bb.Significant
		}
		errs = append(errs, bb.Errors...)

		if aa.Station != "" && bb.Station != "" && aa.Station != bb.Station {
			errs = append(errs, sounding.NewDecodeError(ttbb.Part, sounding.ErrStationMismatch,
				bb.Station+" != "+aa.Station))
		}
	}

	return p, errs
}
