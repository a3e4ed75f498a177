// Package parsers imports all parser packages to trigger their init() registration.
// Import this package for side effects only.
package parsers

import (
	// Import all parser packages to register them with the registry.
	_ "sounding_parser/internal/parsers/ttaa"
	_ "sounding_parser/internal/parsers/ttbb"
)
