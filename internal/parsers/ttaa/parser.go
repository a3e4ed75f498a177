// Package ttaa decodes the TTAA (mandatory levels) part of a TEMP report.
package ttaa

import (
	"strings"

	"sounding_parser/internal/bulletin"
	"sounding_parser/internal/groups"
	"sounding_parser/internal/registry"
)

// Result is a decoded TTAA message.
type Result struct {
	MsgID     int64  `json:"message_id"`
	Timestamp string `json:"timestamp,omitempty"`
	Source    string `json:"source,omitempty"`
	Raw       string `json:"-"`
	Section
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Result) Type() string     { return "ttaa" }
func (r *Result) MessageID() int64 { return r.MsgID }

// Parser adapts Decode to the registry.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "ttaa" }
func (p *Parser) Parts() []string { return []string{Part} }
func (p *Parser) Priority() int   { return 10 }

func (p *Parser) QuickCheck(text string) bool {
	return strings.Contains(strings.ToUpper(text), Part)
}

func (p *Parser) Parse(msg *bulletin.Message) registry.Result {
	if msg.Text == "" {
		return nil
	}

	s := Decode(msg.Text)
	if s.Station == "" {
		return nil
	}

	result := &Result{
		MsgID:     int64(msg.ID),
		Timestamp: msg.Timestamp,
		Source:    msg.Source,
		Raw:       msg.Text,
		Section:   s,
	}
	for _, err := range s.Errors {
		result.Warnings = append(result.Warnings, err.Error())
	}
	return result
}

// Trace decodes text and also returns every cluster the decoder consumed.
func Trace(text string) (Section, []registry.ClusterTrace) {
	var clusters []registry.ClusterTrace
	d := &decoder{trace: func(kind string, start int, groups []string) {
		clusters = append(clusters, registry.ClusterTrace{Kind: kind, Start: start, Groups: groups})
	}}
	d.run(groups.Tokenise(text))
	return d.s, clusters
}

// ParseWithTrace implements registry.Traceable.
func (p *Parser) ParseWithTrace(msg *bulletin.Message) *registry.TraceResult {
	trace := &registry.TraceResult{
		ParserName: p.Name(),
		QuickCheck: &registry.QuickCheck{Passed: p.QuickCheck(msg.Text)},
	}
	if !trace.QuickCheck.Passed {
		trace.QuickCheck.Reason = "no " + Part + " identifier"
		return trace
	}

	s, clusters := Trace(msg.Text)
	trace.Clusters = clusters
	for _, err := range s.Errors {
		trace.Errors = append(trace.Errors, err.Error())
	}
	trace.Matched = s.Station != ""
	return trace
}
