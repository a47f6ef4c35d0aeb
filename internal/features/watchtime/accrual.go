package watchtime

import "time"

// Accrual computes the watch-time delta to credit for a chat event seen at
// now, given the previous sighting. The delta is clamped to maxGap: silence
// longer than the gap only counts as one gap, so lurking through the night
// does not farm eligibility.
func Accrual(lastSeen, now time.Time, maxGap time.Duration) time.Duration {
	if lastSeen.IsZero() || !now.After(lastSeen) {
		return 0
	}
	d := now.Sub(lastSeen)
	if d > maxGap {
		return maxGap
	}
	return d
}
