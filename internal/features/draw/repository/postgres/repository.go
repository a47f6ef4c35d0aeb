package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"drops-backend/internal/features/draw/models"
)

// DrawRepository persists draws and their status transitions. Claim and
// expiry are single status-guarded UPDATEs, so a race between them is decided
// by whichever commits first; the loser matches zero rows.
type DrawRepository struct {
	db *sql.DB
}

func NewDrawRepository(db *sql.DB) *DrawRepository { return &DrawRepository{db: db} }

func (r *DrawRepository) CreatePending(ctx context.Context, channel, nickname string, rewardID int64, expiresAt time.Time) (int64, error) {
	const q = `
	INSERT INTO draws (channel, nickname, reward_id, created_at, status, expires_at)
	VALUES ($1,$2,$3,NOW(),'pending',$4)
	RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, q, channel, nickname, rewardID, expiresAt).Scan(&id)
	return id, err
}

func (r *DrawRepository) CreateClaimed(ctx context.Context, channel, nickname string, rewardID int64, notified bool) (int64, error) {
	const q = `
	INSERT INTO draws (channel, nickname, reward_id, created_at, status, expires_at, notified)
	VALUES ($1,$2,$3,NOW(),'claimed',NULL,$4)
	RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, q, channel, nickname, rewardID, notified).Scan(&id)
	return id, err
}

func (r *DrawRepository) ClaimPending(ctx context.Context, nickname string, now time.Time) ([]models.ClaimedReward, error) {
	const q = `
	UPDATE draws d SET status = 'claimed'
	FROM rewards r
	WHERE r.id = d.reward_id
	  AND d.nickname = $1
	  AND d.status = 'pending'
	  AND d.expires_at > $2
	RETURNING d.id, r.id, r.name`
	rows, err := r.db.QueryContext(ctx, q, nickname, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []models.ClaimedReward
	for rows.Next() {
		var c models.ClaimedReward
		if err := rows.Scan(&c.DrawID, &c.RewardID, &c.RewardName); err != nil {
			return nil, err
		}
		claimed = append(claimed, c)
	}
	return claimed, rows.Err()
}

func (r *DrawRepository) ExpireDue(ctx context.Context, now time.Time) ([]models.ExpiredDraw, error) {
	const q = `
	UPDATE draws d SET status = 'expired'
	FROM rewards r
	WHERE r.id = d.reward_id
	  AND d.status = 'pending'
	  AND d.expires_at IS NOT NULL
	  AND d.expires_at <= $1
	RETURNING d.id, d.nickname, r.name`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []models.ExpiredDraw
	for rows.Next() {
		var e models.ExpiredDraw
		if err := rows.Scan(&e.DrawID, &e.Nickname, &e.RewardName); err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

func (r *DrawRepository) MarkNotified(ctx context.Context, drawIDs []int64) error {
	if len(drawIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE draws SET notified = TRUE WHERE id = ANY($1)`,
		pq.Array(drawIDs),
	)
	return err
}

func (r *DrawRepository) PendingNotifications(ctx context.Context) ([]models.ClaimSummary, error) {
	const q = `
	SELECT d.id, d.nickname, r.name
	FROM draws d
	JOIN rewards r ON r.id = d.reward_id
	WHERE d.status = 'claimed' AND NOT d.notified
	ORDER BY d.id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ClaimSummary
	for rows.Next() {
		var s models.ClaimSummary
		if err := rows.Scan(&s.DrawID, &s.Nickname, &s.RewardName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *DrawRepository) Stats(ctx context.Context, nickname string) (models.Stats, error) {
	var stats models.Stats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM draws WHERE nickname = $1 AND status = 'claimed'`,
		nickname,
	).Scan(&stats.Wins)
	if err != nil {
		return stats, err
	}

	const qLast = `
	SELECT d.created_at, r.name
	FROM draws d
	JOIN rewards r ON r.id = d.reward_id
	WHERE d.nickname = $1 AND d.status = 'claimed'
	ORDER BY d.created_at DESC LIMIT 1`
	var (
		at   time.Time
		name string
	)
	err = r.db.QueryRowContext(ctx, qLast, nickname).Scan(&at, &name)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	stats.LastWinAt = &at
	stats.LastWinReward = name
	return stats, nil
}
