// Package registry provides tracing interfaces for parser debugging.
package registry

import "sounding_parser/internal/bulletin"

// TraceResult contains trace information from a parser's attempt to parse a message.
type TraceResult struct {
	ParserName string         `json:"parser"`                // Name of the parser.
	QuickCheck *QuickCheck    `json:"quick_check,omitempty"` // QuickCheck result (nil if not applicable).
	Clusters   []ClusterTrace `json:"clusters,omitempty"`    // Group clusters in the order the decoder consumed them.
	Errors     []string       `json:"errors,omitempty"`      // Structural problems reported by the decoder.
	Matched    bool           `json:"matched"`               // Whether the parser produced a result.
}

// QuickCheck contains the result of a parser's quick check.
type QuickCheck struct {
	Passed bool   `json:"passed"`           // Whether the quick check passed.
	Reason string `json:"reason,omitempty"` // Optional reason for the result.
}

// ClusterTrace describes one run of groups consumed together by a decoder.
type ClusterTrace struct {
	Kind   string   `json:"kind"`   // e.g. "surface", "mandatory_level", "tropopause", "discarded".
	Start  int      `json:"start"`  // Index of the first group in the report.
	Groups []string `json:"groups"` // The groups themselves.
}

// Traceable is implemented by parsers that support debug tracing.
// This allows the trace command to show how a report was cut into clusters
// and which of them were kept.
type Traceable interface {
	// ParseWithTrace attempts to parse the message and returns detailed trace information.
	ParseWithTrace(msg *bulletin.Message) *TraceResult
}
