package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/features/ledger/models"
)

const uniqueViolation = "23505"

// LedgerRepository persists the gold journal and balances. Every read-modify-
// write path runs in a serializable transaction; the unique journal key turns
// a replay into a no-op instead of a double credit.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository { return &LedgerRepository{db: db} }

func (r *LedgerRepository) begin(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (r *LedgerRepository) Balance(ctx context.Context, accountID int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`SELECT balance FROM gold_balances WHERE account_id = $1`, accountID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (r *LedgerRepository) CreditOnce(ctx context.Context, accountID, amount int64, sourceType string, sourceID int64) (bool, error) {
	if amount <= 0 {
		return false, apperrors.NewValidationError("credit amount must be positive")
	}
	tx, err := r.begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	inserted, err := insertEntry(ctx, tx, accountID, amount, sourceType, sourceID)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}
	if err := bumpBalance(ctx, tx, accountID, amount); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *LedgerRepository) ApplyDeltaOnce(ctx context.Context, accountID, amount int64, sourceType string, sourceID int64) (models.ApplyResult, error) {
	if amount == 0 {
		balance, err := r.Balance(ctx, accountID)
		return models.ApplyResult{Status: models.ApplyZero, Balance: balance}, err
	}
	tx, err := r.begin(ctx)
	if err != nil {
		return models.ApplyResult{}, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM gold_balances WHERE account_id = $1 FOR UPDATE`, accountID,
	).Scan(&balance)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.ApplyResult{}, err
	}
	if amount < 0 && balance+amount < 0 {
		return models.ApplyResult{Status: models.ApplyInsufficient, Balance: balance}, nil
	}

	inserted, err := insertEntry(ctx, tx, accountID, amount, sourceType, sourceID)
	if err != nil {
		return models.ApplyResult{}, err
	}
	if !inserted {
		return models.ApplyResult{Status: models.ApplyExists, Balance: balance}, nil
	}
	if err := bumpBalance(ctx, tx, accountID, amount); err != nil {
		return models.ApplyResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.ApplyResult{}, err
	}
	return models.ApplyResult{Status: models.ApplyApplied, Balance: balance + amount}, nil
}

func (r *LedgerRepository) Entries(ctx context.Context, accountID int64, limit int) ([]models.Entry, error) {
	const q = `
	SELECT id, account_id, amount, source_type, source_id, created_at
	FROM gold_ledger WHERE account_id = $1
	ORDER BY id DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Entry
	for rows.Next() {
		var e models.Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.SourceType, &e.SourceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEntry(ctx context.Context, tx *sql.Tx, accountID, amount int64, sourceType string, sourceID int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO gold_ledger (account_id, amount, source_type, source_id, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (account_id, source_type, source_id) DO NOTHING`,
		accountID, amount, sourceType, sourceID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func bumpBalance(ctx context.Context, tx *sql.Tx, accountID, delta int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO gold_balances (account_id, balance, updated_at)
		VALUES ($1,$2,NOW())
		ON CONFLICT (account_id) DO UPDATE
		SET balance = gold_balances.balance + EXCLUDED.balance, updated_at = NOW()`,
		accountID, delta,
	)
	return err
}

func (r *LedgerRepository) RecordItemClaim(ctx context.Context, drawID, accountID int64, nickname, rewardName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO item_claims (draw_id, account_id, nickname, reward_name, status, claimed_at)
		VALUES ($1,$2,$3,$4,'available',NOW())
		ON CONFLICT (draw_id) DO NOTHING`,
		drawID, accountID, nickname, rewardName,
	)
	return err
}

func (r *LedgerRepository) AvailableItemClaims(ctx context.Context, accountID int64) ([]models.ItemClaim, error) {
	const q = `
	SELECT id, draw_id, account_id, COALESCE(nickname, ''), reward_name, status, claimed_at
	FROM item_claims
	WHERE account_id = $1 AND status = 'available'
	ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ItemClaim
	for rows.Next() {
		var c models.ItemClaim
		if err := rows.Scan(&c.ID, &c.DrawID, &c.AccountID, &c.Nickname, &c.RewardName, &c.Status, &c.ClaimedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *LedgerRepository) CreateConversionRequest(ctx context.Context, accountID, drawID int64) (int64, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var rewardName string
	err = tx.QueryRowContext(ctx, `
		SELECT reward_name FROM item_claims
		WHERE draw_id = $1 AND account_id = $2 AND status = 'available'
		FOR UPDATE`,
		drawID, accountID,
	).Scan(&rewardName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NewConflictError("item claim is not available for conversion")
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE item_claims SET status = 'conversion_pending' WHERE draw_id = $1`, drawID,
	); err != nil {
		return 0, err
	}

	var requestID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversion_requests (account_id, draw_id, reward_name, status, requested_at)
		VALUES ($1,$2,$3,'pending',NOW())
		RETURNING id`,
		accountID, drawID, rewardName,
	).Scan(&requestID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.NewConflictError("conversion already requested for this draw")
		}
		return 0, err
	}
	return requestID, tx.Commit()
}

func (r *LedgerRepository) GetConversionRequest(ctx context.Context, requestID int64) (*models.ConversionRequest, error) {
	req, err := scanConversionRequest(r.db.QueryRowContext(ctx, `
		SELECT id, account_id, draw_id, reward_name, status, gold_amount, reason, requested_at, decided_at, admin_id
		FROM conversion_requests WHERE id = $1`,
		requestID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("conversion request not found")
	}
	return req, err
}

func (r *LedgerRepository) ListConversionRequests(ctx context.Context, status models.ConversionStatus) ([]models.ConversionRequest, error) {
	const q = `
	SELECT id, account_id, draw_id, reward_name, status, gold_amount, reason, requested_at, decided_at, admin_id
	FROM conversion_requests WHERE status = $1
	ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ConversionRequest
	for rows.Next() {
		req, err := scanConversionRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversionRequest(row rowScanner) (*models.ConversionRequest, error) {
	var (
		req       models.ConversionRequest
		amount    sql.NullInt64
		reason    sql.NullString
		requested sql.NullTime
		decided   sql.NullTime
		adminID   sql.NullInt64
	)
	err := row.Scan(&req.ID, &req.AccountID, &req.DrawID, &req.RewardName, &req.Status,
		&amount, &reason, &requested, &decided, &adminID)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		req.GoldAmount = &amount.Int64
	}
	if reason.Valid {
		req.Reason = &reason.String
	}
	if requested.Valid {
		req.RequestedAt = requested.Time
	}
	if decided.Valid {
		req.DecidedAt = &decided.Time
	}
	if adminID.Valid {
		req.AdminID = &adminID.Int64
	}
	return &req, nil
}

func (r *LedgerRepository) CreditConversion(ctx context.Context, requestID, adminID, amount int64) (*models.ConversionOutcome, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		accountID int64
		drawID    int64
		status    models.ConversionStatus
	)
	err = tx.QueryRowContext(ctx,
		`SELECT account_id, draw_id, status FROM conversion_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	).Scan(&accountID, &drawID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.ConversionOutcome{Status: "not_found"}, nil
	}
	if err != nil {
		return nil, err
	}
	if status != models.ConversionPending {
		return &models.ConversionOutcome{Status: "not_pending", AccountID: accountID}, nil
	}

	// Кредит с ключом по id заявки: повтор решения не удвоит баланс.
	inserted, err := insertEntry(ctx, tx, accountID, amount, models.SourceConversion, requestID)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return &models.ConversionOutcome{Status: "exists", AccountID: accountID}, nil
	}
	if err := bumpBalance(ctx, tx, accountID, amount); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversion_requests
		SET status = 'credited', gold_amount = $2, decided_at = NOW(), admin_id = $3
		WHERE id = $1`,
		requestID, amount, adminID,
	); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE item_claims SET status = 'converted' WHERE draw_id = $1`, drawID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &models.ConversionOutcome{Status: "credited", AccountID: accountID, Amount: amount}, nil
}

func (r *LedgerRepository) RejectConversion(ctx context.Context, requestID, adminID int64, reason string) (bool, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var drawID int64
	err = tx.QueryRowContext(ctx,
		`SELECT draw_id FROM conversion_requests WHERE id = $1 AND status = 'pending' FOR UPDATE`,
		requestID,
	).Scan(&drawID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversion_requests
		SET status = 'rejected', reason = $2, decided_at = NOW(), admin_id = $3
		WHERE id = $1`,
		requestID, reason, adminID,
	); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE item_claims SET status = 'available' WHERE draw_id = $1`, drawID,
	); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *LedgerRepository) CreateCheck(ctx context.Context, code string, amount int64, maxActivations int, createdBy int64, channelID *int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO gold_checks (code, amount, max_activations, status, created_by, created_at, channel_id)
		VALUES ($1,$2,$3,'active',$4,NOW(),$5)
		RETURNING id`,
		code, amount, maxActivations, createdBy, channelID,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, apperrors.NewConflictError("check code already exists")
	}
	return id, err
}

func (r *LedgerRepository) GetCheckByCode(ctx context.Context, code string) (*models.Check, error) {
	var (
		c         models.Check
		channelID sql.NullInt64
		createdBy sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, amount, max_activations, activated_count, status, created_by, channel_id
		FROM gold_checks WHERE code = $1`,
		code,
	).Scan(&c.ID, &c.Code, &c.Amount, &c.MaxActivations, &c.ActivatedCount, &c.Status, &createdBy, &channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("check not found")
	}
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		c.CreatedBy = createdBy.Int64
	}
	if channelID.Valid {
		c.ChannelID = &channelID.Int64
	}
	return &c, nil
}

func (r *LedgerRepository) ActivateCheck(ctx context.Context, code string, accountID int64) (*models.CheckActivation, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		checkID        int64
		amount         int64
		activated      int
		maxActivations int
		status         models.CheckStatus
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, amount, activated_count, max_activations, status
		FROM gold_checks WHERE code = $1 FOR UPDATE`,
		code,
	).Scan(&checkID, &amount, &activated, &maxActivations, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.CheckActivation{Status: "not_found"}, nil
	}
	if err != nil {
		return nil, err
	}
	result := &models.CheckActivation{
		CheckID:        checkID,
		Amount:         amount,
		ActivatedCount: activated,
		MaxActivations: maxActivations,
	}
	if status != models.CheckActive {
		result.Status = "inactive"
		return result, nil
	}
	if activated >= maxActivations {
		result.Status = "finished"
		return result, nil
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO gold_check_activations (check_id, account_id, activated_at)
		VALUES ($1,$2,NOW())
		ON CONFLICT (check_id, account_id) DO NOTHING`,
		checkID, accountID,
	)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		result.Status = "already"
		return result, nil
	}

	var activationID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM gold_check_activations WHERE check_id = $1 AND account_id = $2`,
		checkID, accountID,
	).Scan(&activationID); err != nil {
		return nil, err
	}
	if _, err := insertEntry(ctx, tx, accountID, amount, models.SourceCheckActivation, activationID); err != nil {
		return nil, err
	}
	if err := bumpBalance(ctx, tx, accountID, amount); err != nil {
		return nil, err
	}

	activated++
	result.ActivatedCount = activated
	newStatus := models.CheckActive
	if activated >= maxActivations {
		newStatus = models.CheckFinished
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE gold_checks SET activated_count = $2, status = $3 WHERE id = $1`,
		checkID, activated, newStatus,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	result.Status = "activated"
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
