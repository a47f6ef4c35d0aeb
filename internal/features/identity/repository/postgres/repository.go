package postgres

import (
	"context"
	"database/sql"
	"errors"

	"drops-backend/internal/features/identity/models"
)

type IdentityRepository struct {
	db *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository { return &IdentityRepository{db: db} }

func (r *IdentityRepository) CreateVerification(ctx context.Context, accountID int64, code string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO linked_accounts (account_id, verification_code)
		VALUES ($1,$2)
		ON CONFLICT (account_id) DO UPDATE SET verification_code = EXCLUDED.verification_code`,
		accountID, code,
	)
	return err
}

func (r *IdentityRepository) VerifyLink(ctx context.Context, nickname, code string) (int64, bool, error) {
	var accountID int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE linked_accounts
		SET nickname = $1, verification_code = NULL
		WHERE verification_code = $2
		RETURNING account_id`,
		nickname, code,
	).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return accountID, true, nil
}

func (r *IdentityRepository) AccountByNickname(ctx context.Context, nickname string) (int64, bool, error) {
	var accountID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id FROM linked_accounts WHERE nickname = $1`,
		nickname,
	).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return accountID, true, nil
}

func (r *IdentityRepository) NicknameByAccount(ctx context.Context, accountID int64) (string, bool, error) {
	var nickname sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT nickname FROM linked_accounts WHERE account_id = $1`,
		accountID,
	).Scan(&nickname)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !nickname.Valid) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return nickname.String, true, nil
}

func (r *IdentityRepository) List(ctx context.Context) ([]models.Link, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, COALESCE(nickname, ''), nickname IS NOT NULL, created_at
		FROM linked_accounts ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Nickname, &l.Verified, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
