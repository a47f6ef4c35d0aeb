package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/features/channel/models"
)

type ChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) *ChannelRepository { return &ChannelRepository{db: db} }

func (r *ChannelRepository) Ensure(ctx context.Context, login string) (*models.Channel, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channels (login) VALUES ($1)
		ON CONFLICT (login) DO NOTHING`,
		login,
	)
	if err != nil {
		return nil, err
	}
	return r.GetByLogin(ctx, login)
}

func (r *ChannelRepository) GetByLogin(ctx context.Context, login string) (*models.Channel, error) {
	return r.get(ctx, `SELECT id, login, owner_account_id, enabled, created_at FROM channels WHERE login = $1`, login)
}

func (r *ChannelRepository) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	return r.get(ctx, `SELECT id, login, owner_account_id, enabled, created_at FROM channels WHERE id = $1`, id)
}

func (r *ChannelRepository) get(ctx context.Context, query string, arg any) (*models.Channel, error) {
	var (
		ch    models.Channel
		owner sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&ch.ID, &ch.Login, &owner, &ch.Enabled, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("channel not found")
	}
	if err != nil {
		return nil, err
	}
	if owner.Valid {
		ch.OwnerAccountID = &owner.Int64
	}
	return &ch, nil
}

func (r *ChannelRepository) ListEnabled(ctx context.Context) ([]models.Channel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, login, owner_account_id, enabled, created_at FROM channels WHERE enabled ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Channel
	for rows.Next() {
		var (
			ch    models.Channel
			owner sql.NullInt64
		)
		if err := rows.Scan(&ch.ID, &ch.Login, &owner, &ch.Enabled, &ch.CreatedAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			ch.OwnerAccountID = &owner.Int64
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *ChannelRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE channels SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperrors.NewNotFoundError("channel not found")
	}
	return nil
}

func (r *ChannelRepository) Settings(ctx context.Context, channelID int64) (*models.Settings, error) {
	var (
		s             models.Settings
		minInterval   sql.NullInt64
		maxInterval   sql.NullInt64
		activeTimeout sql.NullInt64
		claimTimeout  sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT channel_id, min_interval_minutes, max_interval_minutes,
		       active_timeout_minutes, claim_timeout_minutes, drops_enabled
		FROM channel_settings WHERE channel_id = $1`,
		channelID,
	).Scan(&s.ChannelID, &minInterval, &maxInterval, &activeTimeout, &claimTimeout, &s.DropsEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Settings{ChannelID: channelID, DropsEnabled: true}, nil
	}
	if err != nil {
		return nil, err
	}
	assign := func(dst **int, src sql.NullInt64) {
		if src.Valid {
			v := int(src.Int64)
			*dst = &v
		}
	}
	assign(&s.MinIntervalMinutes, minInterval)
	assign(&s.MaxIntervalMinutes, maxInterval)
	assign(&s.ActiveTimeoutMinutes, activeTimeout)
	assign(&s.ClaimTimeoutMinutes, claimTimeout)
	return &s, nil
}

func (r *ChannelRepository) UpsertSettings(ctx context.Context, s models.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_settings
			(channel_id, min_interval_minutes, max_interval_minutes,
			 active_timeout_minutes, claim_timeout_minutes, drops_enabled, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (channel_id) DO UPDATE SET
			min_interval_minutes = EXCLUDED.min_interval_minutes,
			max_interval_minutes = EXCLUDED.max_interval_minutes,
			active_timeout_minutes = EXCLUDED.active_timeout_minutes,
			claim_timeout_minutes = EXCLUDED.claim_timeout_minutes,
			drops_enabled = EXCLUDED.drops_enabled,
			updated_at = NOW()`,
		s.ChannelID, s.MinIntervalMinutes, s.MaxIntervalMinutes,
		s.ActiveTimeoutMinutes, s.ClaimTimeoutMinutes, s.DropsEnabled,
	)
	return err
}
