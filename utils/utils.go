// Package utils provides utility functions for the application.
package utils

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// DefaultString returns s, or def when s is empty
func DefaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// PtrOrNil returns a pointer to s, or nil when s is empty
func PtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
