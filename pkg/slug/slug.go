// Package slug turns display titles into filesystem-safe base names.
package slug

import (
	"regexp"
	"strings"
)

// MaxLen is the maximum number of characters kept from a title.
const MaxLen = 100

var (
	reUnsafe    = regexp.MustCompile(`[^A-Za-z0-9_\s\p{Zs}\v-]`)
	reSeparator = regexp.MustCompile(`[\s\p{Zs}\v-]+`)
)

// Sanitize returns a lowercase name made of [a-z0-9_] only, at most MaxLen long.
// The result may be empty when the title has no usable characters.
// Sanitize is idempotent.
func Sanitize(title string) string {
	title = truncate(title, MaxLen)
	title = strings.ReplaceAll(title, "#", "_")
	title = reUnsafe.ReplaceAllString(title, "")
	title = reSeparator.ReplaceAllString(title, "_")

	return strings.Trim(strings.ToLower(title), "_")
}

func truncate(s string, n int) string {
	count := 0

	for i := range s {
		if count == n {
			return s[:i]
		}

		count++
	}

	return s
}
