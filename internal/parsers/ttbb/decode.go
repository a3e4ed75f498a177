package ttbb

import (
	"sounding_parser/internal/codec"
	"sounding_parser/internal/groups"
	"sounding_parser/internal/parsers/header"
	"sounding_parser/internal/patterns"
	"sounding_parser/internal/sounding"
)

// Part is the identifier of the significant-level part.
const Part = "TTBB"

// firstLevelGroup is where the search for the surface group starts.
const firstLevelGroup = 3

// Cluster kinds reported by Trace.
const (
	KindSurface     = "surface"
	KindTemperature = "significant_level"
	KindSeparator   = "wind_section"
	KindWind        = "wind_level"
	KindDiscarded   = "discarded"
	KindTruncated   = "truncated"
)

// Section is the decoded content of a TTBB report.
type Section struct {
	header.Header
	Significant []sounding.Level `json:"significant_levels"`
	Errors      []error          `json:"-"`
}

type decoder struct {
	s     Section
	trace func(kind string, start int, groups []string)
}

// Decode decodes TTBB report text. Levels are returned in descending pressure.
// A report without a 00PPP surface group yields no levels and ErrSurfaceMarker.
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
	s.Significant = []sounding.Level{}

	at := g.IndexFunc(firstLevelGroup, patterns.IsSurfaceMarker)
	if at < 0 {
		s.Errors = append(s.Errors, sounding.NewDecodeError(Part, sounding.ErrSurfaceMarker, ""))
		return
	}

	c := d.surface(g.Cursor(at))
	c = d.temperatures(c)

	if sep := g.Index(c.Pos(), patterns.WindSection); sep >= 0 {
		d.note(KindSeparator, sep, []string{patterns.WindSection})
		d.winds(g.Cursor(sep + 1))
	}

	sounding.SortByPressure(s.Significant)
}

// surface records the 00PPP group and the TTTDD group after it as the first
// significant level.
func (d *decoder) surface(c groups.Cursor) groups.Cursor {
	start := c.Pos()
	marker, _ := c.Peek()
	c = c.Skip(1)

	pressure, _ := codec.PressureTail(marker)
	level := sounding.Level{Pressure: pressure}
	consumed := []string{marker}
	if group, ok := c.Peek(); ok {
		level.SetThermo(codec.TempDepression(group))
		consumed = append(consumed, group)
		c = c.Skip(1)
	}

	d.s.Significant = append(d.s.Significant, level)
	d.note(KindSurface, start, consumed)
	return c
}

// temperatures reads nnPPP/TTTDD pairs until a group that is not a
// significant-level group, usually 21212. A pair missing its second group is
// dropped.
func (d *decoder) temperatures(c groups.Cursor) groups.Cursor {
	for {
		group, ok := c.Peek()
		if !ok || !patterns.IsSignificantLevel(group) {
			return c
		}

		pair, next, ok := c.Take(2)
		if !ok {
			d.note(KindTruncated, c.Pos(), []string{group})
			return next
		}

		pressure, _ := codec.PressureTail(pair[0])
		level := sounding.Level{Pressure: pressure}
		level.SetThermo(codec.TempDepression(pair[1]))
		d.s.Significant = append(d.s.Significant, level)
		d.note(KindTemperature, c.Pos(), pair)
		c = next
	}
}

// winds reads nnPPP/dddff pairs after 21212 until 31313 or any other
// non-level group. Winds are merged into an existing level at the same
// pressure, otherwise a wind-only level is added.
func (d *decoder) winds(c groups.Cursor) {
	s := &d.s
	for {
		group, ok := c.Peek()
		if !ok || !patterns.IsWindLevel(group) {
			return
		}

		pair, next, ok := c.Take(2)
		if !ok {
			d.note(KindTruncated, c.Pos(), []string{group})
			return
		}
		start := c.Pos()
		c = next

		pressure, _ := codec.PressureTail(pair[0])
		dir, spd, ok := codec.Wind(pair[1])
		if !ok {
			d.note(KindDiscarded, start, pair)
			continue
		}
		d.note(KindWind, start, pair)

		if i := sounding.FindLevel(s.Significant, pressure); i >= 0 {
			s.Significant[i].SetWind(dir, spd)
			continue
		}
		level := sounding.Level{Pressure: pressure}
		level.SetWind(dir, spd)
		s.Significant = append(s.Significant, level)
	}
}
