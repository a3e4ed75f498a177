package bulletin

import (
	"strings"

	"sounding_parser/internal/patterns"
)

// Report is one report part cut out of a bulletin.
type Report struct {
	Part string // TTAA, TTBB, TTCC or TTDD
	Text string // groups joined by single spaces, identifier first
}

// Parts holds the first TTAA and TTBB reports of a bulletin.
type Parts struct {
	TTAA string
	TTBB string
}

// DetectPart returns the part identifier that opens text, or "".
func DetectPart(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	part, _ := patterns.PartOf(fields[0])
	return part
}

// Reports cuts a bulletin into report parts. A part identifier opens a report
// and a trailing "=" closes it. Groups outside any report, such as the
// abbreviated heading line, are dropped.
func Reports(text string) []Report {
	var (
		reports []Report
		current []string
		part    string
	)

	flush := func() {
		if part != "" && len(current) > 0 {
			reports = append(reports, Report{Part: part, Text: strings.Join(current, " ")})
		}
		current = nil
		part = ""
	}

	for _, field := range strings.Fields(strings.ToUpper(text)) {
		closes := strings.HasSuffix(field, "=")
		field = strings.TrimRight(field, "=")

		if p, ok := patterns.PartOf(field); ok {
			flush()
			part = p
		}
		if part != "" && field != "" {
			current = append(current, field)
		}
		if closes {
			flush()
		}
	}
	flush()

	return reports
}

// Split returns the first TTAA and TTBB reports found in text. Parts that this
// decoder does not handle (TTCC, TTDD) are ignored.
func Split(text string) Parts {
	var p Parts
	for _, r := range Reports(text) {
		switch r.Part {
		case "TTAA":
			if p.TTAA == "" {
				p.TTAA = r.Text
			}
		case "TTBB":
			if p.TTBB == "" {
				p.TTBB = r.Text
			}
		}
	}
	return p
}
