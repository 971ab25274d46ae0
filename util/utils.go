package util

import (
	"path/filepath"
	"strings"
)

// GetAbsolutePath resolves a path relative to the current working directory.
func GetAbsolutePath(relativePath string) (string, error) {
	return filepath.Abs(relativePath)
}

func StringPtr(s string) *string {
	return &s
}

func Int64Ptr(i int64) *int64 {
	return &i
}

func BoolPtr(b bool) *bool {
	return &b
}

func Float64Ptr(f float64) *float64 {
	return &f
}

// Deref returns the pointed-to string or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Trimmed returns the trimmed value of s, or "" when s is nil.
func Trimmed(s *string) string {
	return strings.TrimSpace(Deref(s))
}

// NonEmpty reports whether s holds something other than whitespace.
func NonEmpty(s *string) bool {
	return Trimmed(s) != ""
}
