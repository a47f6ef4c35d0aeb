package repository

import (
	"context"

	"drops-backend/internal/features/giveaway/models"
)

type GiveawayRepository interface {
	// CreatePlanned stores the giveaway together with its hidden reward
	// (weight 0, disabled) in one transaction.
	CreatePlanned(ctx context.Context, channelID int64, title, rewardName string, winnersCount int, status models.PlannedStatus, createdBy *int64) (*models.Planned, error)

	GetPlanned(ctx context.Context, id int64) (*models.Planned, error)
	ListPlanned(ctx context.Context, channelID int64, statuses []models.PlannedStatus) ([]models.Planned, error)
	SetPlannedStatus(ctx context.Context, id int64, status models.PlannedStatus) error

	// MarkTriggered flips the giveaway to triggered, guarding against a
	// second trigger. Returns false when it was already triggered.
	MarkTriggered(ctx context.Context, id int64) (bool, error)
}
