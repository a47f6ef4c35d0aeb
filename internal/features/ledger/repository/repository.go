package repository

import (
	"context"

	"drops-backend/internal/features/ledger/models"
)

type LedgerRepository interface {
	Balance(ctx context.Context, accountID int64) (int64, error)

	// CreditOnce appends a journal entry and bumps the balance. A duplicate
	// (account, source_type, source_id) key returns false with no change.
	CreditOnce(ctx context.Context, accountID, amount int64, sourceType string, sourceID int64) (bool, error)

	// ApplyDeltaOnce is the signed variant: debits are refused when the
	// balance would go negative, duplicates report exists.
	ApplyDeltaOnce(ctx context.Context, accountID, amount int64, sourceType string, sourceID int64) (models.ApplyResult, error)

	Entries(ctx context.Context, accountID int64, limit int) ([]models.Entry, error)

	RecordItemClaim(ctx context.Context, drawID, accountID int64, nickname, rewardName string) error
	AvailableItemClaims(ctx context.Context, accountID int64) ([]models.ItemClaim, error)

	// CreateConversionRequest moves an available item claim to
	// conversion_pending and opens a request for it.
	CreateConversionRequest(ctx context.Context, accountID, drawID int64) (int64, error)
	GetConversionRequest(ctx context.Context, requestID int64) (*models.ConversionRequest, error)
	ListConversionRequests(ctx context.Context, status models.ConversionStatus) ([]models.ConversionRequest, error)

	// CreditConversion settles a pending request: credits gold keyed by the
	// request id and marks the item converted.
	CreditConversion(ctx context.Context, requestID, adminID, amount int64) (*models.ConversionOutcome, error)

	// RejectConversion returns the item claim to available.
	RejectConversion(ctx context.Context, requestID, adminID int64, reason string) (bool, error)

	CreateCheck(ctx context.Context, code string, amount int64, maxActivations int, createdBy int64, channelID *int64) (int64, error)
	GetCheckByCode(ctx context.Context, code string) (*models.Check, error)

	// ActivateCheck credits the check amount at most once per account and
	// finishes the check when the activation limit is reached.
	ActivateCheck(ctx context.Context, code string, accountID int64) (*models.CheckActivation, error)
}
