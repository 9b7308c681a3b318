package retention

import (
	"fmt"
	"math"
	"time"

	"github.com/polarfoxDev/drydock/internal/model"
)

// Reldate renders the time from date up to ref using the two most significant
// non-zero units. When ref precedes date there is no elapsed time to report
// and the clip sentinel is returned instead.
func Reldate(date, ref time.Time, clip string) string {
	if ref.Before(date) {
		return clip
	}
	months, days, hours, minutes := delta(date, ref)
	switch {
	case months > 1:
		return fmt.Sprintf("%d months, %d days", months, days)
	case months == 1:
		return fmt.Sprintf("%d month, %d days", months, days)
	case days >= 7:
		return fmt.Sprintf("%d days", days)
	case days > 1:
		return fmt.Sprintf("%d days, %d hours", days, hours)
	case days == 1:
		return fmt.Sprintf("%d day, %d hours", days, hours)
	default:
		return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
	}
}

// delta decomposes ref-date into calendar months plus days, hours and
// minutes. ref must not precede date.
func delta(date, ref time.Time) (months, days, hours, minutes int) {
	months = (ref.Year()-date.Year())*12 + int(ref.Month()) - int(date.Month())
	anchor := date.AddDate(0, months, 0)
	if anchor.After(ref) {
		months--
		anchor = date.AddDate(0, months, 0)
	}
	rest := ref.Sub(anchor)
	days = int(rest / (24 * time.Hour))
	hours = int(rest/time.Hour) % 24
	minutes = int(rest/time.Minute) % 60
	return months, days, hours, minutes
}

// ShouldForceFull decides whether the next backup run must be a full backup:
// when the increments accumulated since the most recent full backup exceed
// half that full backup's size, extending the chain has become too expensive
// (restores replay every increment, and nothing in the chain can be pruned
// until the whole chain expires). A chain without any full backup always
// forces one; incrementals have nothing to build on.
func ShouldForceFull(chain model.Chain) bool {
	var incSize int64
	for _, rec := range chain {
		if !rec.Full {
			incSize += rec.Size
			continue
		}
		return float64(incSize) > 0.5*float64(rec.Size)
	}
	return true
}

// DeletionEstimates computes, for each record in the chain (most recent
// first), a human-readable estimate of when it becomes eligible for
// deletion. Records with no estimate yield "".
//
// A full backup and the increments depending on it can only be deleted
// together, so every record in a segment shares the segment's estimate. For
// the newest segment the estimate extrapolates linearly from the observed
// increment sizes: the number of further increments until the forced-full
// threshold is met, plus the configured retention window. The estimate is a
// heuristic; it assumes uniform incremental growth and must not be used for
// scheduling.
func DeletionEstimates(chain model.Chain, minAgeDays int, now time.Time) []string {
	estimates := make([]string, len(chain))

	// Average increment size and most recent full size for the newest
	// segment.
	increments, full, haveFull := chain.CurrentSegment()
	var incSize int64
	for _, rec := range increments {
		incSize += rec.Size
	}

	deletedIn := ""
	if len(increments) > 0 && haveFull {
		avg := float64(incSize) / float64(len(increments))
		predicted := float64(minAgeDays) + (0.5*float64(full.Size)-float64(incSize))/avg + 0.5
		deletedIn = fmt.Sprintf("approx. %d days", int(math.RoundToEven(predicted)))
	}

	sawFull := false
	eligible := now.AddDate(0, 0, -minAgeDays)
	for i, rec := range chain {
		if deletedIn != "" {
			// Records are deleted when the most recent increment in
			// their chain would be deleted.
			estimates[i] = deletedIn
		}
		if rec.Full {
			// A new (older) chain starts below this record.
			sawFull = true
			deletedIn = ""
		} else if sawFull && deletedIn == "" {
			// First increment after a full backup: its age against the
			// retention boundary sets the whole segment's estimate.
			deletedIn = Reldate(eligible, rec.Date, "on next daily backup")
			estimates[i] = deletedIn
		}
	}
	return estimates
}
