package repository

import (
	"context"

	"drops-backend/internal/features/channel/models"
)

type ChannelRepository interface {
	// Ensure registers the channel if it is unknown and returns it either way.
	Ensure(ctx context.Context, login string) (*models.Channel, error)

	GetByLogin(ctx context.Context, login string) (*models.Channel, error)
	GetByID(ctx context.Context, id int64) (*models.Channel, error)
	ListEnabled(ctx context.Context) ([]models.Channel, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error

	// Settings returns the channel overrides, defaults when none are stored.
	Settings(ctx context.Context, channelID int64) (*models.Settings, error)
	UpsertSettings(ctx context.Context, s models.Settings) error
}
