package repository

import (
	"context"
	"time"

	"drops-backend/internal/features/draw/models"
)

type DrawRepository interface {
	// CreatePending inserts a draw waiting for the winner inside the claim window.
	CreatePending(ctx context.Context, channel, nickname string, rewardID int64, expiresAt time.Time) (int64, error)

	// CreateClaimed inserts a draw born claimed; used when eligibility is
	// proven before the draw exists (guess game, admin instant draws).
	CreateClaimed(ctx context.Context, channel, nickname string, rewardID int64, notified bool) (int64, error)

	// ClaimPending transitions every unexpired pending draw of the viewer to
	// claimed and returns them. The status guard makes it lose cleanly
	// against a concurrent expiry.
	ClaimPending(ctx context.Context, nickname string, now time.Time) ([]models.ClaimedReward, error)

	// ExpireDue transitions every overdue pending draw to expired and
	// returns the affected rows for notification.
	ExpireDue(ctx context.Context, now time.Time) ([]models.ExpiredDraw, error)

	MarkNotified(ctx context.Context, drawIDs []int64) error
	PendingNotifications(ctx context.Context) ([]models.ClaimSummary, error)
	Stats(ctx context.Context, nickname string) (models.Stats, error)
}
