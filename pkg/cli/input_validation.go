// Package cli validates command-line input before it reaches the runtime
package cli

import (
	"errors"
	"regexp"
	"strings"
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,32}$`)

// ValidatePath rejects config or data paths that attempt traversal or
// shell injection
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is required")
	}
	if strings.Contains(path, "../") || strings.Contains(path, "..\\") {
		return errors.New("path traversal detected")
	}
	if strings.ContainsAny(path, ";|&$`") {
		return errors.New("invalid characters in path")
	}
	return nil
}

// ValidateSymbol checks that a user-supplied symbol is a plain ticker
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return errors.New("invalid symbol")
	}
	return nil
}
