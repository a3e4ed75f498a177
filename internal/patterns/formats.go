package patterns

import (
	"sync"
)

// Section markers that delimit parts of a TTBB report.
const (
	WindSection       = "21212"
	RegionalSection   = "31313"
	CloudSection      = "41414"
	AdditionalSection = "51515"
	NationalSection   = "61616"
)

// Formats defines the known group shapes of TTAA and TTBB reports.
var Formats = []Format{
	// Section marker, checked before level formats because 21212 and 51515
	// would otherwise read as significant levels.
	{
		Name:    "section_marker",
		Pattern: `^{SECTION}$`,
	},
	// TTBB surface group, e.g. 00996.
	{
		Name:    "surface_marker",
		Pattern: `^{SFC_PREFIX}(?P<pressure>{PRESSURE3})$`,
		Fields:  []string{"pressure"},
	},
	// TTBB significant level, e.g. 11995.
	{
		Name:    "significant_level",
		Pattern: `^(?P<nn>{SIG_PREFIX})(?P<pressure>{PRESSURE3})$`,
		Fields:  []string{"nn", "pressure"},
	},
	// Level in the 21212 wind section; the surface may appear here too.
	{
		Name:    "wind_level",
		Pattern: `^(?P<nn>{SFC_PREFIX}|{SIG_PREFIX})(?P<pressure>{PRESSURE3})$`,
		Fields:  []string{"nn", "pressure"},
	},
	// Part identifier, e.g. TTAA.
	{
		Name:    "part",
		Pattern: `^(?P<part>{PART})$`,
		Fields:  []string{"part"},
	},
	// Day/hour/wind indicator, e.g. 51231.
	{
		Name:    "header",
		Pattern: `^(?P<day>{DAY})(?P<hour>{HOUR})(?P<indicator>{WIND_IND})$`,
		Fields:  []string{"day", "hour", "indicator"},
	},
}

var (
	groupCompiler *Compiler
	groupOnce     sync.Once
)

func compiler() *Compiler {
	groupOnce.Do(func() {
		groupCompiler = NewCompiler(Formats, nil)
		if err := groupCompiler.Compile(); err != nil {
			panic("patterns: compile group formats: " + err.Error())
		}
	})
	return groupCompiler
}

// MatchFormat matches a group against one named format.
func MatchFormat(name, group string) *Match {
	return compiler().Match(name, group)
}

// IsSectionMarker reports whether group is a TTBB section marker (21212, 31313, ...).
func IsSectionMarker(group string) bool {
	return compiler().Matches("section_marker", group)
}

// IsSurfaceMarker reports whether group is a TTBB 00PPP surface group.
func IsSurfaceMarker(group string) bool {
	return compiler().Matches("surface_marker", group)
}

// IsSignificantLevel reports whether group is an nnPPP significant-level group.
// Section markers are excluded.
func IsSignificantLevel(group string) bool {
	return !IsSectionMarker(group) && compiler().Matches("significant_level", group)
}

// IsWindLevel reports whether group can open a pair in the 21212 wind section.
func IsWindLevel(group string) bool {
	return !IsSectionMarker(group) && compiler().Matches("wind_level", group)
}

// PartOf returns the part identifier (TTAA, TTBB, ...) if group is one.
func PartOf(group string) (string, bool) {
	part := compiler().Match("part", group).GetCapture("part", "")
	return part, part != ""
}

// ParseHeader decodes a YYGGI group. The day is YY minus 50, so a group
// reported without the knots offset yields a day of zero or below.
func ParseHeader(group string) (day, hour int, ok bool) {
	m := compiler().Match("header", group)
	if m == nil {
		return 0, 0, false
	}
	day = atoi2(m.Captures["day"]) - 50
	hour = atoi2(m.Captures["hour"])
	return day, hour, true
}

// atoi2 converts a two-digit capture already validated by the header format.
func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
