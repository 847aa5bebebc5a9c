// Package progress computes display values for elapsed time and the
// remaining-time estimate of a running job.
package progress

import (
	"fmt"
	"time"
)

// Sentinel display values for estimates that cannot be computed.
const (
	RemainingCalculating = "calculating..."
	RemainingAlmostDone  = "almost done"
)

// Estimate derives display strings from the job start time, the current
// time, and the reported completion percent. It is a pure function and
// is recomputed on every progress event; percent is not assumed to be
// monotonic.
func Estimate(start, now time.Time, percent int) (elapsed, remaining string) {
	elapsedDur := now.Sub(start)
	if elapsedDur < 0 {
		elapsedDur = 0
	}
	elapsed = FormatDuration(elapsedDur)

	if percent <= 0 {
		return elapsed, RemainingCalculating
	}

	total := time.Duration(float64(elapsedDur) / float64(percent) * 100)
	remainingDur := total - elapsedDur
	if remainingDur <= 0 {
		return elapsed, RemainingAlmostDone
	}

	return elapsed, "~" + FormatDuration(remainingDur)
}

// FormatDuration renders a duration as "<m>m <s>s" past one minute and
// "<s>s" below it.
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	if seconds >= 60 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}
