package repository

import (
	"context"

	"drops-backend/internal/features/trigger/models"
)

type TriggerRepository interface {
	Enqueue(ctx context.Context, t models.Trigger) (int64, error)

	// Dequeue claims the oldest unprocessed trigger of the channel and
	// returns it, or nil when the queue is empty. Claiming and returning
	// happen in one transaction, so two consumers never share a row.
	Dequeue(ctx context.Context, channelID int64) (*models.Trigger, error)

	Pending(ctx context.Context, channelID int64) ([]models.Trigger, error)
}
