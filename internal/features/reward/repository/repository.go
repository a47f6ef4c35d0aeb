package repository

import (
	"context"

	"drops-backend/internal/features/reward/models"
)

type RewardRepository interface {
	Create(ctx context.Context, r models.Reward) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Reward, error)
	ListByChannel(ctx context.Context, channelID int64) ([]models.Reward, error)
	ListEnabled(ctx context.Context, channelID int64) ([]models.Reward, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) (bool, error)
}
