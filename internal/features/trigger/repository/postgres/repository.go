package postgres

import (
	"context"
	"database/sql"
	"errors"

	"drops-backend/internal/features/trigger/models"
)

type TriggerRepository struct {
	db *sql.DB
}

func NewTriggerRepository(db *sql.DB) *TriggerRepository { return &TriggerRepository{db: db} }

func (r *TriggerRepository) Enqueue(ctx context.Context, t models.Trigger) (int64, error) {
	const q = `
	INSERT INTO giveaway_triggers
		(requested_by, created_at, trigger_type, channel_id, reward_id,
		 winners_count, planned_giveaway_id, guess_number, guess_min, guess_max)
	VALUES ($1,NOW(),$2,$3,$4,$5,$6,$7,$8,$9)
	RETURNING id`
	var id int64
	err := r.db.QueryRowContext(ctx, q,
		t.RequestedBy, t.Type, t.ChannelID, t.RewardID,
		t.WinnersCount, t.PlannedGiveawayID, t.GuessNumber, t.GuessMin, t.GuessMax,
	).Scan(&id)
	return id, err
}

func (r *TriggerRepository) Dequeue(ctx context.Context, channelID int64) (*models.Trigger, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// SKIP LOCKED держит конкурирующих потребителей на разных строках.
	const q = `
	SELECT id, requested_by, created_at, trigger_type, channel_id, reward_id,
	       winners_count, planned_giveaway_id, guess_number, guess_min, guess_max
	FROM giveaway_triggers
	WHERE channel_id = $1 AND processed_at IS NULL
	ORDER BY id ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED`
	t, err := scanTrigger(tx.QueryRowContext(ctx, q, channelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE giveaway_triggers SET processed_at = NOW() WHERE id = $1`, t.ID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TriggerRepository) Pending(ctx context.Context, channelID int64) ([]models.Trigger, error) {
	const q = `
	SELECT id, requested_by, created_at, trigger_type, channel_id, reward_id,
	       winners_count, planned_giveaway_id, guess_number, guess_min, guess_max
	FROM giveaway_triggers
	WHERE channel_id = $1 AND processed_at IS NULL
	ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrigger(row rowScanner) (*models.Trigger, error) {
	var (
		t         models.Trigger
		requested sql.NullInt64
		rewardID  sql.NullInt64
		winners   sql.NullInt64
		plannedID sql.NullInt64
		guessNum  sql.NullInt64
		guessMin  sql.NullInt64
		guessMax  sql.NullInt64
	)
	err := row.Scan(&t.ID, &requested, &t.CreatedAt, &t.Type, &t.ChannelID,
		&rewardID, &winners, &plannedID, &guessNum, &guessMin, &guessMax)
	if err != nil {
		return nil, err
	}
	if requested.Valid {
		t.RequestedBy = &requested.Int64
	}
	if rewardID.Valid {
		t.RewardID = &rewardID.Int64
	}
	if winners.Valid {
		v := int(winners.Int64)
		t.WinnersCount = &v
	}
	if plannedID.Valid {
		t.PlannedGiveawayID = &plannedID.Int64
	}
	if guessNum.Valid {
		v := int(guessNum.Int64)
		t.GuessNumber = &v
	}
	if guessMin.Valid {
		v := int(guessMin.Int64)
		t.GuessMin = &v
	}
	if guessMax.Valid {
		v := int(guessMax.Int64)
		t.GuessMax = &v
	}
	return &t, nil
}
