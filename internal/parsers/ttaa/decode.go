package ttaa

import (
	"fmt"
	"strings"

	"sounding_parser/internal/codec"
	"sounding_parser/internal/groups"
	"sounding_parser/internal/parsers/header"
	"sounding_parser/internal/sounding"
)

// Part is the identifier of the mandatory-level part.
const Part = "TTAA"

// minGroups is the identifier, day/hour, station and at least one surface group.
const minGroups = 4

// Cluster prefixes that take precedence over the pressure lookup.
const (
	tropopausePrefix = "88"
	maxWindPrefix    = "77"
	terminatorPrefix = "31"
	notObserved      = "999"
)

// Section is the decoded content of a TTAA report.
type Section struct {
	header.Header
	Surface    sounding.Surface     `json:"surface"`
	Mandatory  []sounding.Level     `json:"mandatory_levels"`
	Tropopause *sounding.Tropopause `json:"tropopause,omitempty"`
	MaxWind    *sounding.MaxWind    `json:"max_wind,omitempty"`
	Errors     []error              `json:"-"`
}

// Cluster kinds reported by Trace.
const (
	KindSurface     = "surface"
	KindLevel       = "mandatory_level"
	KindTropopause  = "tropopause"
	KindMaxWind     = "max_wind"
	KindNotObserved = "not_observed"
	KindDiscarded   = "discarded"
	KindTruncated   = "truncated"
	KindTerminator  = "terminator"
)

// decoder walks the groups of one report. trace is nil unless the caller
// asked for a cluster trace.
type decoder struct {
	s     Section
	trace func(kind string, start int, groups []string)
}

// Decode decodes TTAA report text. It never fails outright: structural
// problems are listed in Section.Errors and the rest of the report is decoded
// as far as the groups allow.
func Decode(text string) Section {
	d := &decoder{}
	d.run(groups.Tokenise(text))
	return d.s
}

func (d *decoder) note(kind string, start int, groups []string) {
	if d.trace != nil {
		d.trace(kind, start, groups)
	}
}

func (d *decoder) run(g groups.Groups) {
	s := &d.s
	s.Header, s.Errors = header.Decode(Part, g)
	s.Mandatory = []sounding.Level{}

	if g.Len() < minGroups {
		s.Errors = append(s.Errors, sounding.NewDecodeError(Part, sounding.ErrTooShort,
			fmt.Sprintf("%d groups, need at least %d", g.Len(), minGroups)))
		return
	}

	s.Surface = decodeSurface(g)
	surface := g.Slice()[3:min(6, g.Len())]
	d.note(KindSurface, 3, surface)

	c := g.Cursor(3).Skip(3)
	for !c.Done() {
		group, _ := c.Peek()

		var stop bool
		c, stop = d.cluster(c, group)
		if stop {
			break
		}
	}
}

// decodeSurface reads the 99PPP, TTTDD and dddff groups at indexes 3-5.
// Any of them may be missing or a placeholder.
func decodeSurface(g groups.Groups) sounding.Surface {
	var sfc sounding.Surface

	if group, ok := g.At(3); ok && strings.HasPrefix(group, codec.SurfaceIndicator) {
		if p, ok := codec.PressureTail(group); ok {
			sfc.Pressure = &p
		}
	}
	if group, ok := g.At(4); ok {
		sfc.SetThermo(codec.TempDepression(group))
	}
	if group, ok := g.At(5); ok {
		if dir, spd, ok := codec.Wind(group); ok {
			sfc.WindDirection = &dir
			sfc.WindSpeed = &spd
		}
	}

	return sfc
}

// cluster consumes one cluster starting at c and reports whether decoding
// should stop. A cluster that runs past the end of the report is dropped.
func (d *decoder) cluster(c groups.Cursor, group string) (groups.Cursor, bool) {
	s := &d.s
	start := c.Pos()

	take := func(n int) ([]string, groups.Cursor, bool) {
		cluster, next, ok := c.Take(n)
		if !ok {
			rest, _, _ := c.Take(c.Remaining())
			d.note(KindTruncated, start, rest)
		}
		return cluster, next, ok
	}

	switch {
	case strings.HasPrefix(group, tropopausePrefix):
		if group[len(tropopausePrefix):] == notObserved {
			d.note(KindNotObserved, start, []string{group})
			return c.Skip(1), false
		}
		cluster, next, ok := take(3)
		if !ok {
			return next, true
		}
		if t := decodeTropopause(cluster); t != nil {
			s.Tropopause = t
			d.note(KindTropopause, start, cluster)
		} else {
			d.note(KindDiscarded, start, cluster)
		}
		return next, false

	case strings.HasPrefix(group, maxWindPrefix):
		if group[len(maxWindPrefix):] == notObserved {
			d.note(KindNotObserved, start, []string{group})
			return c.Skip(1), false
		}
		cluster, next, ok := take(2)
		if !ok {
			return next, true
		}
		if mw := decodeMaxWind(cluster); mw != nil {
			s.MaxWind = mw
			d.note(KindMaxWind, start, cluster)
		} else {
			d.note(KindDiscarded, start, cluster)
		}
		return next, false

	case strings.HasPrefix(group, terminatorPrefix):
		rest, _, _ := c.Take(c.Remaining())
		d.note(KindTerminator, start, rest)
		return c, true

	default:
		cluster, next, ok := take(3)
		if !ok {
			return next, true
		}
		if level, ok := decodeLevel(cluster); ok {
			s.Mandatory = append(s.Mandatory, level)
			d.note(KindLevel, start, cluster)
		} else {
			d.note(KindDiscarded, start, cluster)
		}
		return next, false
	}
}

// decodeLevel decodes a PPhhh, TTTDD, dddff cluster. Clusters whose pressure
// indicator is not a level (99, non-digits) are discarded.
func decodeLevel(cluster []string) (sounding.Level, bool) {
	pressure, height, ok := codec.PressureHeight(cluster[0])
	if !ok {
		return sounding.Level{}, false
	}

	level := sounding.Level{Pressure: pressure, Height: height}
	level.SetThermo(codec.TempDepression(cluster[1]))
	if dir, spd, ok := codec.Wind(cluster[2]); ok {
		level.SetWind(dir, spd)
	}
	return level, true
}

// decodeTropopause decodes an 88PPP, TTTDD, dddff cluster. The record is
// only produced when every field decodes.
func decodeTropopause(cluster []string) *sounding.Tropopause {
	pressure, ok := codec.PressureTail(cluster[0])
	if !ok {
		return nil
	}
	temp, dep := codec.TempDepression(cluster[1])
	if temp == nil || dep == nil {
		return nil
	}
	dir, spd, ok := codec.Wind(cluster[2])
	if !ok {
		return nil
	}

	return &sounding.Tropopause{
		Pressure:           pressure,
		Temperature:        *temp,
		Dewpoint:           *sounding.Dewpoint(temp, dep),
		DewpointDepression: *dep,
		WindDirection:      dir,
		WindSpeed:          spd,
	}
}

// decodeMaxWind decodes a 77PPP, dddff cluster.
func decodeMaxWind(cluster []string) *sounding.MaxWind {
	pressure, ok := codec.PressureTail(cluster[0])
	if !ok {
		return nil
	}
	dir, spd, ok := codec.Wind(cluster[1])
	if !ok {
		return nil
	}
	return &sounding.MaxWind{Pressure: pressure, WindDirection: dir, WindSpeed: spd}
}
