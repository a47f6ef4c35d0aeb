package postgres

import (
	"context"
	"database/sql"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/features/reward/models"
)

// RewardRepository persists the per-channel drop catalog.
type RewardRepository struct {
	db *sql.DB
}

func NewRewardRepository(db *sql.DB) *RewardRepository { return &RewardRepository{db: db} }

func (r *RewardRepository) Create(ctx context.Context, reward models.Reward) (int64, error) {
	const q = `
	INSERT INTO rewards (channel_id, name, description, weight, quantity, enabled)
	VALUES ($1,$2,$3,$4,$5,$6)
	RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, q,
		reward.ChannelID, reward.Name, reward.Description, reward.Weight, reward.Quantity, reward.Enabled,
	).Scan(&id)
	return id, err
}

func (r *RewardRepository) GetByID(ctx context.Context, id int64) (*models.Reward, error) {
	const q = `
	SELECT id, channel_id, name, description, weight, quantity, enabled
	FROM rewards WHERE id = $1`
	var (
		reward    models.Reward
		channelID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&reward.ID, &channelID, &reward.Name, &reward.Description,
		&reward.Weight, &reward.Quantity, &reward.Enabled,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("reward not found")
	}
	if err != nil {
		return nil, err
	}
	if channelID.Valid {
		reward.ChannelID = &channelID.Int64
	}
	return &reward, nil
}

func (r *RewardRepository) ListByChannel(ctx context.Context, channelID int64) ([]models.Reward, error) {
	const q = `
	SELECT id, channel_id, name, description, weight, quantity, enabled
	FROM rewards WHERE channel_id = $1 ORDER BY id DESC`
	return r.list(ctx, q, channelID)
}

func (r *RewardRepository) ListEnabled(ctx context.Context, channelID int64) ([]models.Reward, error) {
	const q = `
	SELECT id, channel_id, name, description, weight, quantity, enabled
	FROM rewards WHERE enabled AND (channel_id = $1 OR channel_id IS NULL) ORDER BY id ASC`
	return r.list(ctx, q, channelID)
}

func (r *RewardRepository) SetEnabled(ctx context.Context, id int64, enabled bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE rewards SET enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *RewardRepository) list(ctx context.Context, q string, args ...interface{}) ([]models.Reward, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reward
	for rows.Next() {
		var (
			reward    models.Reward
			channelID sql.NullInt64
		)
		if err := rows.Scan(
			&reward.ID, &channelID, &reward.Name, &reward.Description,
			&reward.Weight, &reward.Quantity, &reward.Enabled,
		); err != nil {
			return nil, err
		}
		if channelID.Valid {
			reward.ChannelID = &channelID.Int64
		}
		out = append(out, reward)
	}
	return out, rows.Err()
}
