// Package gen provides utility functions for generating values.
package gen

import "github.com/google/uuid"

// ID returns a random identifier suitable for request IDs and directory names.
func ID() string {
	return uuid.NewString()
}

// IsID reports whether s looks like an identifier produced by ID.
func IsID(s string) bool {
	return uuid.Validate(s) == nil
}
