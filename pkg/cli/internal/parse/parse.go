// Package parse provides string parsing utilities for CLI commands.
package parse

import "strings"

// KeyValue parses a "key=value" or "key:value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to '='.
// Returns the key, value, and a boolean indicating success.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{'='}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return "", "", false
}
