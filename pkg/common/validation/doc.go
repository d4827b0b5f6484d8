// Package validation provides common validation utilities for configuration
// parameters across the appendflow library.
//
// The helpers return structured ValidationErrors so constructors and
// configuration parsers reject bad input with consistent messages instead of
// ad-hoc error strings.
package validation
