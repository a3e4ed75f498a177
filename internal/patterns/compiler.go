// Package patterns provides the group formats shared by the TEMP decoders.
// This file contains the grok-style pattern compiler.

package patterns

import (
	"regexp"
	"strings"
)

// Format represents a group format with named capture groups.
type Format struct {
	Name     string         // Format name for identification
	Pattern  string         // Pattern with {PLACEHOLDER} syntax
	Compiled *regexp.Regexp // Compiled regex (populated by Compile)
	Fields   []string       // Field names in capture order (for documentation)
}

// Compiler manages pattern compilation and matching for a set of formats.
type Compiler struct {
	basePatterns map[string]string
	formats      []Format
	byName       map[string]int
}

// NewCompiler creates a new pattern compiler with the given formats.
// It merges the provided base patterns with the global BasePatterns,
// allowing local patterns to override global ones.
func NewCompiler(formats []Format, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string),
		formats:      make([]Format, len(formats)),
		byName:       make(map[string]int, len(formats)),
	}

	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}

	// Overlay local patterns (can override global ones).
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}

	copy(c.formats, formats)
	for i, f := range c.formats {
		c.byName[f.Name] = i
	}

	return c
}

// Compile expands all {PLACEHOLDER} references and compiles regexes.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		expanded := c.expand(c.formats[i].Pattern)
		re, err := regexp.Compile(expanded)
		if err != nil {
			return err
		}
		c.formats[i].Compiled = re
	}
	return nil
}

// expand replaces {PLACEHOLDER} with actual regex patterns.
func (c *Compiler) expand(pattern string) string {
	result := pattern
	for name, regex := range c.basePatterns {
		placeholder := "{" + name + "}"
		result = strings.ReplaceAll(result, placeholder, regex)
	}
	return result
}

// Match represents a successful pattern match with extracted fields.
type Match struct {
	FormatName string            // Name of the matched format
	Captures   map[string]string // Named capture group values
}

// Parse tries every compiled format in order and returns the first match,
// or nil if no format matches.
func (c *Compiler) Parse(text string) *Match {
	upperText := strings.ToUpper(text)

	for _, format := range c.formats {
		if m := match(format, upperText); m != nil {
			return m
		}
	}

	return nil
}

// Match matches text against a single named format.
func (c *Compiler) Match(formatName, text string) *Match {
	i, ok := c.byName[formatName]
	if !ok {
		return nil
	}
	return match(c.formats[i], strings.ToUpper(text))
}

// Matches reports whether text matches the named format.
func (c *Compiler) Matches(formatName, text string) bool {
	i, ok := c.byName[formatName]
	if !ok || c.formats[i].Compiled == nil {
		return false
	}
	return c.formats[i].Compiled.MatchString(strings.ToUpper(text))
}

func match(format Format, text string) *Match {
	if format.Compiled == nil {
		return nil
	}

	m := format.Compiled.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	result := &Match{
		FormatName: format.Name,
		Captures:   make(map[string]string),
	}

	// Extract named groups.
	for i, name := range format.Compiled.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		result.Captures[name] = m[i]
	}

	return result
}

// GetCapture is a helper to safely get a capture value with a default.
func (m *Match) GetCapture(name string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if val, ok := m.Captures[name]; ok && val != "" {
		return val
	}
	return defaultVal
}
