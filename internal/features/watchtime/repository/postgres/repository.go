package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// WatchTimeRepository keeps the recency pool and the watch-time counters.
// The accrual clamp lives in the upsert itself: the delta since last_seen_at
// is capped at maxGap seconds, same rule as watchtime.Accrual.
type WatchTimeRepository struct {
	db *sql.DB
}

func NewWatchTimeRepository(db *sql.DB) *WatchTimeRepository { return &WatchTimeRepository{db: db} }

func (r *WatchTimeRepository) Touch(ctx context.Context, channel, nickname string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO active_users (channel, nickname, last_active_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (channel, nickname) DO UPDATE SET last_active_at = EXCLUDED.last_active_at`,
		channel, nickname, now,
	)
	return err
}

func (r *WatchTimeRepository) ActiveNicknames(ctx context.Context, channel string, since time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT nickname FROM active_users WHERE channel = $1 AND last_active_at >= $2`,
		channel, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNicknames(rows)
}

func (r *WatchTimeRepository) AccrueLifetime(ctx context.Context, channel, nickname string, now time.Time, maxGap time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watch_time (channel, nickname, seconds, last_seen_at)
		VALUES ($1,$2,0,$3)
		ON CONFLICT (channel, nickname) DO UPDATE SET
			seconds = watch_time.seconds + LEAST(
				GREATEST(EXTRACT(EPOCH FROM ($3::timestamptz - watch_time.last_seen_at)), 0), $4
			)::BIGINT,
			last_seen_at = EXCLUDED.last_seen_at`,
		channel, nickname, now, int64(maxGap.Seconds()),
	)
	return err
}

func (r *WatchTimeRepository) AccrueSession(ctx context.Context, sessionID int64, nickname string, now time.Time, maxGap time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stream_watch_time (session_id, nickname, seconds, last_seen_at)
		VALUES ($1,$2,0,$3)
		ON CONFLICT (session_id, nickname) DO UPDATE SET
			seconds = stream_watch_time.seconds + LEAST(
				GREATEST(EXTRACT(EPOCH FROM ($3::timestamptz - stream_watch_time.last_seen_at)), 0), $4
			)::BIGINT,
			last_seen_at = EXCLUDED.last_seen_at`,
		sessionID, nickname, now, int64(maxGap.Seconds()),
	)
	return err
}

func (r *WatchTimeRepository) LifetimeSeconds(ctx context.Context, channel, nickname string) (int64, error) {
	var seconds int64
	err := r.db.QueryRowContext(ctx,
		`SELECT seconds FROM watch_time WHERE channel = $1 AND nickname = $2`,
		channel, nickname,
	).Scan(&seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seconds, err
}

func (r *WatchTimeRepository) SessionSeconds(ctx context.Context, sessionID int64, nickname string) (int64, error) {
	var seconds int64
	err := r.db.QueryRowContext(ctx,
		`SELECT seconds FROM stream_watch_time WHERE session_id = $1 AND nickname = $2`,
		sessionID, nickname,
	).Scan(&seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seconds, err
}

func (r *WatchTimeRepository) EligibleNicknames(ctx context.Context, sessionID int64, nicknames []string, minSeconds int64) ([]string, error) {
	if len(nicknames) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT nickname FROM stream_watch_time
		WHERE session_id = $1 AND nickname = ANY($2) AND seconds >= $3`,
		sessionID, pq.Array(nicknames), minSeconds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNicknames(rows)
}

func (r *WatchTimeRepository) StartSession(ctx context.Context, channel string, at time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO stream_sessions (channel, started_at) VALUES ($1,$2) RETURNING id`,
		channel, at,
	).Scan(&id)
	return id, err
}

func (r *WatchTimeRepository) EndSession(ctx context.Context, sessionID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE stream_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`,
		sessionID, at,
	)
	return err
}

func (r *WatchTimeRepository) OpenSession(ctx context.Context, channel string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM stream_sessions
		WHERE channel = $1 AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`,
		channel,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func scanNicknames(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
