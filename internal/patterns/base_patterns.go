// Package patterns provides the group formats shared by the TEMP decoders.
// This file contains grok-style base patterns for use with the Compiler.

package patterns

// BasePatterns defines reusable regex components for grok-style pattern composition.
// These are referenced in format patterns using {PATTERN_NAME} syntax.
var BasePatterns = map[string]string{
	// Report identifiers.
	"PART": `TT(?:AA|BB|CC|DD)`,

	// Section 1: YYGGI and IIiii.
	"DAY":      `\d{2}`,      // YY, day of month (+50 when wind is in knots)
	"HOUR":     `\d{2}`,      // GG, nominal hour UTC
	"WIND_IND": `[\d/]`,      // Id, last standard level with wind
	"STATION":  `[\dA-Z]{5}`, // IIiii block and station number

	// Level groups.
	"PRESSURE3":  `\d{3}`,      // PPP, whole hPa
	"SIG_PREFIX": `[1-9][1-9]`, // nn, significant level counter
	"SFC_PREFIX": `00`,         // surface marker in TTBB

	// Section markers.
	"SECTION": `(?:21212|31313|41414|51515|61616)`,
}
