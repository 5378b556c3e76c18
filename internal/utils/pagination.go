// Package utils holds query-string helpers shared by the HTTP handlers.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// OptionalBool parses "true"/"false" (any case) into a pointer. Anything
// else, including "", means the filter is unset.
func OptionalBool(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		b := true
		return &b
	case "false":
		b := false
		return &b
	}
	return nil
}

// Window clamps a limit/offset pair: limit falls back to def when < 1 and
// is capped at max; negative offsets become 0.
func Window(limit, offset, def, max int) (int, int) {
	if limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
