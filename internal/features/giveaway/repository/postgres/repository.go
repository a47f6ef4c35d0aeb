package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/features/giveaway/models"
)

type GiveawayRepository struct {
	db *sql.DB
}

func NewGiveawayRepository(db *sql.DB) *GiveawayRepository { return &GiveawayRepository{db: db} }

func (r *GiveawayRepository) CreatePlanned(ctx context.Context, channelID int64, title, rewardName string, winnersCount int, status models.PlannedStatus, createdBy *int64) (*models.Planned, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Скрытая награда: нулевой вес и выключена, случайный дроп её не видит.
	var rewardID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO rewards (channel_id, name, weight, quantity, enabled)
		VALUES ($1,$2,0,$3,FALSE)
		RETURNING id`,
		channelID, rewardName, winnersCount,
	).Scan(&rewardID)
	if err != nil {
		return nil, err
	}

	p := &models.Planned{
		ChannelID:    channelID,
		RewardID:     rewardID,
		Title:        title,
		WinnersCount: winnersCount,
		Status:       status,
		CreatedBy:    createdBy,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO planned_giveaways (channel_id, reward_id, title, winners_count, status, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		RETURNING id, created_at`,
		channelID, rewardID, title, winnersCount, status, createdBy,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, tx.Commit()
}

func (r *GiveawayRepository) GetPlanned(ctx context.Context, id int64) (*models.Planned, error) {
	p, err := scanPlanned(r.db.QueryRowContext(ctx, `
		SELECT id, channel_id, reward_id, title, winners_count, status, created_by, created_at, triggered_at
		FROM planned_giveaways WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("planned giveaway not found")
	}
	return p, err
}

func (r *GiveawayRepository) ListPlanned(ctx context.Context, channelID int64, statuses []models.PlannedStatus) ([]models.Planned, error) {
	args := []any{channelID}
	q := `
	SELECT id, channel_id, reward_id, title, winners_count, status, created_by, created_at, triggered_at
	FROM planned_giveaways WHERE channel_id = $1`
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		q += ` AND status = ANY($2)`
		args = append(args, pq.Array(names))
	}
	q += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Planned
	for rows.Next() {
		p, err := scanPlanned(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *GiveawayRepository) SetPlannedStatus(ctx context.Context, id int64, status models.PlannedStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE planned_giveaways SET status = $2 WHERE id = $1 AND status <> 'triggered'`,
		id, status,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperrors.NewConflictError("planned giveaway is already triggered or missing")
	}
	return nil
}

func (r *GiveawayRepository) MarkTriggered(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE planned_giveaways SET status = 'triggered', triggered_at = NOW()
		WHERE id = $1 AND status <> 'triggered'`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlanned(row rowScanner) (*models.Planned, error) {
	var (
		p         models.Planned
		createdBy sql.NullInt64
		createdAt sql.NullTime
		triggered sql.NullTime
	)
	err := row.Scan(&p.ID, &p.ChannelID, &p.RewardID, &p.Title, &p.WinnersCount,
		&p.Status, &createdBy, &createdAt, &triggered)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		p.CreatedBy = &createdBy.Int64
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if triggered.Valid {
		p.TriggeredAt = &triggered.Time
	}
	return &p, nil
}
