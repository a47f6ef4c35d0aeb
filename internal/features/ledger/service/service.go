package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/features/ledger/models"
	"drops-backend/internal/features/ledger/repository"
	rewardmodels "drops-backend/internal/features/reward/models"
)

// LedgerService владеет золотым балансом: начисления, списания, конвертация
// предметов и чеки. Идемпотентность обеспечивает репозиторий, сервис отвечает
// за валидацию и выбор ключа источника.
type LedgerService struct {
	repo   repository.LedgerRepository
	logger zerolog.Logger
}

func NewLedgerService(repo repository.LedgerRepository, logger zerolog.Logger) *LedgerService {
	return &LedgerService{repo: repo, logger: logger}
}

func (s *LedgerService) Balance(ctx context.Context, accountID int64) (int64, error) {
	return s.repo.Balance(ctx, accountID)
}

func (s *LedgerService) Entries(ctx context.Context, accountID int64, limit int) ([]models.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.Entries(ctx, accountID, limit)
}

// Credit начисляет золото ровно один раз на ключ (sourceType, sourceID).
func (s *LedgerService) Credit(ctx context.Context, accountID, amount int64, sourceType string, sourceID int64) (bool, error) {
	credited, err := s.repo.CreditOnce(ctx, accountID, amount, sourceType, sourceID)
	if err != nil {
		return false, err
	}
	if !credited {
		s.logger.Debug().
			Int64("account_id", accountID).
			Str("source_type", sourceType).
			Int64("source_id", sourceID).
			Msg("duplicate credit skipped")
	}
	return credited, nil
}

func (s *LedgerService) ApplyDelta(ctx context.Context, accountID, amount int64, sourceType string, sourceID int64) (models.ApplyResult, error) {
	return s.repo.ApplyDeltaOnce(ctx, accountID, amount, sourceType, sourceID)
}

// Refund возвращает ранее списанную сумму отдельной проводкой. Исходная
// запись не трогается, история остаётся линейной.
func (s *LedgerService) Refund(ctx context.Context, accountID, amount int64, sourceType string, sourceID int64) (bool, error) {
	return s.repo.CreditOnce(ctx, accountID, amount, models.RefundSource(sourceType), sourceID)
}

// SettleOutcome описывает, чем закончилось оформление выигрыша.
type SettleOutcome struct {
	GoldCredited int64
	ItemRecorded bool
}

// SettleClaim оформляет подтверждённый выигрыш. Денежный приз зачисляется с
// ключом по id розыгрыша, предметный становится доступной заявкой.
func (s *LedgerService) SettleClaim(ctx context.Context, accountID, drawID int64, nickname, rewardName string) (SettleOutcome, error) {
	reward := rewardmodels.Reward{Name: rewardName}
	if amount, ok := reward.GoldAmount(); ok {
		credited, err := s.repo.CreditOnce(ctx, accountID, amount, models.SourceDraw, drawID)
		if err != nil {
			return SettleOutcome{}, err
		}
		if credited {
			return SettleOutcome{GoldCredited: amount}, nil
		}
		return SettleOutcome{}, nil
	}
	if err := s.repo.RecordItemClaim(ctx, drawID, accountID, nickname, rewardName); err != nil {
		return SettleOutcome{}, err
	}
	return SettleOutcome{ItemRecorded: true}, nil
}

func (s *LedgerService) AvailableItems(ctx context.Context, accountID int64) ([]models.ItemClaim, error) {
	return s.repo.AvailableItemClaims(ctx, accountID)
}

func (s *LedgerService) RequestConversion(ctx context.Context, accountID, drawID int64) (int64, error) {
	return s.repo.CreateConversionRequest(ctx, accountID, drawID)
}

func (s *LedgerService) PendingConversions(ctx context.Context) ([]models.ConversionRequest, error) {
	return s.repo.ListConversionRequests(ctx, models.ConversionPending)
}

func (s *LedgerService) ApproveConversion(ctx context.Context, requestID, adminID, amount int64) (*models.ConversionOutcome, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("conversion amount must be positive")
	}
	outcome, err := s.repo.CreditConversion(ctx, requestID, adminID, amount)
	if err != nil {
		return nil, err
	}
	if outcome.Status == "credited" {
		s.logger.Info().
			Int64("request_id", requestID).
			Int64("account_id", outcome.AccountID).
			Int64("amount", amount).
			Msg("conversion credited")
	}
	return outcome, nil
}

func (s *LedgerService) RejectConversion(ctx context.Context, requestID, adminID int64, reason string) (bool, error) {
	return s.repo.RejectConversion(ctx, requestID, adminID, reason)
}

// CreateCheck выпускает чек со случайным кодом.
func (s *LedgerService) CreateCheck(ctx context.Context, amount int64, maxActivations int, createdBy int64, channelID *int64) (string, error) {
	if amount <= 0 {
		return "", apperrors.NewValidationError("check amount must be positive")
	}
	if maxActivations <= 0 {
		return "", apperrors.NewValidationError("check must allow at least one activation")
	}
	code := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	if _, err := s.repo.CreateCheck(ctx, code, amount, maxActivations, createdBy, channelID); err != nil {
		return "", err
	}
	return code, nil
}

func (s *LedgerService) CheckByCode(ctx context.Context, code string) (*models.Check, error) {
	return s.repo.GetCheckByCode(ctx, code)
}

func (s *LedgerService) ActivateCheck(ctx context.Context, code string, accountID int64) (*models.CheckActivation, error) {
	result, err := s.repo.ActivateCheck(ctx, code, accountID)
	if err != nil {
		return nil, err
	}
	if result.Status == "activated" {
		s.logger.Info().
			Str("code", code).
			Int64("account_id", accountID).
			Int64("amount", result.Amount).
			Msg("check activated")
	}
	return result, nil
}
