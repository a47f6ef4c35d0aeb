package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	apperrors "drops-backend/internal/common/errors"
	"drops-backend/internal/features/ledger/models"
)

// MemoryLedger реализует repository.LedgerRepository в памяти для тестов.
type MemoryLedger struct {
	mu          sync.Mutex
	balances    map[int64]int64
	entries     []models.Entry
	entryKeys   map[string]bool
	items       map[int64]*models.ItemClaim // по draw_id
	conversions map[int64]*models.ConversionRequest
	checks      map[string]*models.Check
	activations map[string]int64 // "checkID/accountID" -> activation id
	nextID      int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:    make(map[int64]int64),
		entryKeys:   make(map[string]bool),
		items:       make(map[int64]*models.ItemClaim),
		conversions: make(map[int64]*models.ConversionRequest),
		checks:      make(map[string]*models.Check),
		activations: make(map[string]int64),
	}
}

func (m *MemoryLedger) id() int64 {
	m.nextID++
	return m.nextID
}

func entryKey(accountID int64, sourceType string, sourceID int64) string {
	return sourceType + "/" + strconv.FormatInt(sourceID, 10) + "/" + strconv.FormatInt(accountID, 10)
}

func (m *MemoryLedger) Balance(_ context.Context, accountID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[accountID], nil
}

func (m *MemoryLedger) CreditOnce(_ context.Context, accountID, amount int64, sourceType string, sourceID int64) (bool, error) {
	if amount <= 0 {
		return false, apperrors.NewValidationError("credit amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entryKey(accountID, sourceType, sourceID)
	if m.entryKeys[key] {
		return false, nil
	}
	m.entryKeys[key] = true
	m.entries = append(m.entries, models.Entry{
		ID: m.id(), AccountID: accountID, Amount: amount,
		SourceType: sourceType, SourceID: sourceID, CreatedAt: time.Now(),
	})
	m.balances[accountID] += amount
	return true, nil
}

func (m *MemoryLedger) ApplyDeltaOnce(_ context.Context, accountID, amount int64, sourceType string, sourceID int64) (models.ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance := m.balances[accountID]
	if amount == 0 {
		return models.ApplyResult{Status: models.ApplyZero, Balance: balance}, nil
	}
	if amount < 0 && balance+amount < 0 {
		return models.ApplyResult{Status: models.ApplyInsufficient, Balance: balance}, nil
	}
	key := entryKey(accountID, sourceType, sourceID)
	if m.entryKeys[key] {
		return models.ApplyResult{Status: models.ApplyExists, Balance: balance}, nil
	}
	m.entryKeys[key] = true
	m.entries = append(m.entries, models.Entry{
		ID: m.id(), AccountID: accountID, Amount: amount,
		SourceType: sourceType, SourceID: sourceID, CreatedAt: time.Now(),
	})
	m.balances[accountID] += amount
	return models.ApplyResult{Status: models.ApplyApplied, Balance: m.balances[accountID]}, nil
}

func (m *MemoryLedger) Entries(_ context.Context, accountID int64, limit int) ([]models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].AccountID == accountID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *MemoryLedger) RecordItemClaim(_ context.Context, drawID, accountID int64, nickname, rewardName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[drawID]; ok {
		return nil
	}
	m.items[drawID] = &models.ItemClaim{
		ID: m.id(), DrawID: drawID, AccountID: accountID,
		Nickname: nickname, RewardName: rewardName,
		Status: models.ItemAvailable, ClaimedAt: time.Now(),
	}
	return nil
}

func (m *MemoryLedger) AvailableItemClaims(_ context.Context, accountID int64) ([]models.ItemClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ItemClaim
	for _, c := range m.items {
		if c.AccountID == accountID && c.Status == models.ItemAvailable {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MemoryLedger) CreateConversionRequest(_ context.Context, accountID, drawID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim, ok := m.items[drawID]
	if !ok || claim.AccountID != accountID || claim.Status != models.ItemAvailable {
		return 0, apperrors.NewConflictError("item claim is not available for conversion")
	}
	claim.Status = models.ItemConversionPending
	req := &models.ConversionRequest{
		ID: m.id(), AccountID: accountID, DrawID: drawID,
		RewardName: claim.RewardName, Status: models.ConversionPending,
		RequestedAt: time.Now(),
	}
	m.conversions[req.ID] = req
	return req.ID, nil
}

func (m *MemoryLedger) GetConversionRequest(_ context.Context, requestID int64) (*models.ConversionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.conversions[requestID]
	if !ok {
		return nil, apperrors.NewNotFoundError("conversion request not found")
	}
	cp := *req
	return &cp, nil
}

func (m *MemoryLedger) ListConversionRequests(_ context.Context, status models.ConversionStatus) ([]models.ConversionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ConversionRequest
	for _, req := range m.conversions {
		if req.Status == status {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (m *MemoryLedger) CreditConversion(_ context.Context, requestID, adminID, amount int64) (*models.ConversionOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.conversions[requestID]
	if !ok {
		return &models.ConversionOutcome{Status: "not_found"}, nil
	}
	if req.Status != models.ConversionPending {
		return &models.ConversionOutcome{Status: "not_pending", AccountID: req.AccountID}, nil
	}
	key := entryKey(req.AccountID, models.SourceConversion, requestID)
	if m.entryKeys[key] {
		return &models.ConversionOutcome{Status: "exists", AccountID: req.AccountID}, nil
	}
	m.entryKeys[key] = true
	m.balances[req.AccountID] += amount
	now := time.Now()
	req.Status = models.ConversionCredited
	req.GoldAmount = &amount
	req.DecidedAt = &now
	req.AdminID = &adminID
	if claim, ok := m.items[req.DrawID]; ok {
		claim.Status = models.ItemConverted
	}
	return &models.ConversionOutcome{Status: "credited", AccountID: req.AccountID, Amount: amount}, nil
}

func (m *MemoryLedger) RejectConversion(_ context.Context, requestID, adminID int64, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.conversions[requestID]
	if !ok || req.Status != models.ConversionPending {
		return false, nil
	}
	now := time.Now()
	req.Status = models.ConversionRejected
	req.Reason = &reason
	req.DecidedAt = &now
	req.AdminID = &adminID
	if claim, ok := m.items[req.DrawID]; ok {
		claim.Status = models.ItemAvailable
	}
	return true, nil
}

func (m *MemoryLedger) CreateCheck(_ context.Context, code string, amount int64, maxActivations int, createdBy int64, channelID *int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checks[code]; ok {
		return 0, apperrors.NewConflictError("check code already exists")
	}
	check := &models.Check{
		ID: m.id(), Code: code, Amount: amount,
		MaxActivations: maxActivations, Status: models.CheckActive,
		CreatedBy: createdBy, ChannelID: channelID,
	}
	m.checks[code] = check
	return check.ID, nil
}

func (m *MemoryLedger) GetCheckByCode(_ context.Context, code string) (*models.Check, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	check, ok := m.checks[code]
	if !ok {
		return nil, apperrors.NewNotFoundError("check not found")
	}
	cp := *check
	return &cp, nil
}

func (m *MemoryLedger) ActivateCheck(_ context.Context, code string, accountID int64) (*models.CheckActivation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	check, ok := m.checks[code]
	if !ok {
		return &models.CheckActivation{Status: "not_found"}, nil
	}
	result := &models.CheckActivation{
		CheckID:        check.ID,
		Amount:         check.Amount,
		ActivatedCount: check.ActivatedCount,
		MaxActivations: check.MaxActivations,
	}
	if check.Status != models.CheckActive {
		result.Status = "inactive"
		return result, nil
	}
	if check.ActivatedCount >= check.MaxActivations {
		result.Status = "finished"
		return result, nil
	}
	actKey := strconv.FormatInt(check.ID, 10) + "/" + strconv.FormatInt(accountID, 10)
	if _, ok := m.activations[actKey]; ok {
		result.Status = "already"
		return result, nil
	}
	activationID := m.id()
	m.activations[actKey] = activationID
	key := entryKey(accountID, models.SourceCheckActivation, activationID)
	m.entryKeys[key] = true
	m.balances[accountID] += check.Amount
	check.ActivatedCount++
	if check.ActivatedCount >= check.MaxActivations {
		check.Status = models.CheckFinished
	}
	result.Status = "activated"
	result.ActivatedCount = check.ActivatedCount
	return result, nil
}
