package repository

import (
	"context"
	"time"
)

type WatchTimeRepository interface {
	// Touch records chat activity for the recency-based candidate pool.
	Touch(ctx context.Context, channel, nickname string, now time.Time) error

	// ActiveNicknames returns viewers seen in chat since the cutoff.
	ActiveNicknames(ctx context.Context, channel string, since time.Time) ([]string, error)

	// AccrueLifetime adds clamped watch time to the viewer's lifetime
	// counter and advances last_seen_at.
	AccrueLifetime(ctx context.Context, channel, nickname string, now time.Time, maxGap time.Duration) error

	// AccrueSession does the same against the per-stream counter.
	AccrueSession(ctx context.Context, sessionID int64, nickname string, now time.Time, maxGap time.Duration) error

	LifetimeSeconds(ctx context.Context, channel, nickname string) (int64, error)
	SessionSeconds(ctx context.Context, sessionID int64, nickname string) (int64, error)

	// EligibleNicknames filters candidates down to those who watched the
	// session for at least minSeconds.
	EligibleNicknames(ctx context.Context, sessionID int64, nicknames []string, minSeconds int64) ([]string, error)

	StartSession(ctx context.Context, channel string, at time.Time) (int64, error)
	EndSession(ctx context.Context, sessionID int64, at time.Time) error

	// OpenSession returns the running session for the channel, if any.
	OpenSession(ctx context.Context, channel string) (int64, bool, error)
}
