package app

import "time"

// exceedsThreshold reports whether a like pushed an already-promoted post
// past the upper likes bound, which evicts it from the feed.
func exceedsThreshold(tracked *trackedPost, maxThreshold int) bool {
	return tracked.likes > maxThreshold && tracked.added
}

// entersThreshold reports whether a like moved a tracked post into the
// promotion window: strictly above the lower bound, at or below the upper
// bound, not yet promoted, and aged within the configured band.
func entersThreshold(tracked *trackedPost, minThreshold, maxThreshold int, minAge, maxAge time.Duration, now time.Time) bool {
	if tracked.added {
		return false
	}
	if tracked.likes <= minThreshold || tracked.likes > maxThreshold {
		return false
	}
	age := now.Sub(tracked.firstSeenAt)
	return age >= minAge && age <= maxAge
}
