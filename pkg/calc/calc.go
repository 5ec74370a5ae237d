// Package calc provides download progress arithmetic.
package calc

import (
	"math"
	"time"
)

const percent = 100

// Progress returns downloaded/total as a rounded percentage, or 0 when total is unknown.
func Progress(downloaded, total int) int {
	if total <= 0 {
		return 0
	}

	return int(math.Round(float64(downloaded) / float64(total) * percent))
}

// ETA extrapolates the remaining time from the elapsed time since started.
// It returns 0 until at least one byte has been downloaded.
func ETA(downloaded, total int, started time.Time) time.Duration {
	if total <= 0 || downloaded <= 0 || started.IsZero() {
		return 0
	}

	elapsed := time.Since(started)

	return time.Duration(float64(elapsed) * (float64(total)/float64(downloaded) - 1))
}
