package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drops-backend/internal/features/ledger/models"
)

func newTestService() *LedgerService {
	return NewLedgerService(NewMemoryLedger(), zerolog.Nop())
}

func TestCreditIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	credited, err := svc.Credit(ctx, 1, 100, models.SourceDraw, 42)
	require.NoError(t, err)
	assert.True(t, credited)

	// Повтор с тем же ключом не меняет баланс.
	credited, err = svc.Credit(ctx, 1, 100, models.SourceDraw, 42)
	require.NoError(t, err)
	assert.False(t, credited)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestCreditRejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Credit(ctx, 1, 0, models.SourceAdmin, 1)
	assert.Error(t, err)
	_, err = svc.Credit(ctx, 1, -5, models.SourceAdmin, 2)
	assert.Error(t, err)
}

func TestApplyDelta(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	res, err := svc.ApplyDelta(ctx, 1, 30, models.SourceAdmin, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ApplyApplied, res.Status)
	assert.Equal(t, int64(30), res.Balance)

	res, err = svc.ApplyDelta(ctx, 1, -50, models.SourceAdmin, 2)
	require.NoError(t, err)
	assert.Equal(t, models.ApplyInsufficient, res.Status)
	assert.Equal(t, int64(30), res.Balance)

	res, err = svc.ApplyDelta(ctx, 1, -20, models.SourceAdmin, 3)
	require.NoError(t, err)
	assert.Equal(t, models.ApplyApplied, res.Status)
	assert.Equal(t, int64(10), res.Balance)

	res, err = svc.ApplyDelta(ctx, 1, -20, models.SourceAdmin, 3)
	require.NoError(t, err)
	assert.Equal(t, models.ApplyExists, res.Status)

	res, err = svc.ApplyDelta(ctx, 1, 0, models.SourceAdmin, 4)
	require.NoError(t, err)
	assert.Equal(t, models.ApplyZero, res.Status)
}

func TestSettleClaimGold(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	out, err := svc.SettleClaim(ctx, 7, 101, "alice", "50 GOLD")
	require.NoError(t, err)
	assert.Equal(t, int64(50), out.GoldCredited)
	assert.False(t, out.ItemRecorded)

	// Повторное оформление того же розыгрыша не удваивает баланс.
	out, err = svc.SettleClaim(ctx, 7, 101, "alice", "50 GOLD")
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.GoldCredited)

	balance, err := svc.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestSettleClaimItem(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	out, err := svc.SettleClaim(ctx, 7, 102, "alice", "Фирменная кружка")
	require.NoError(t, err)
	assert.True(t, out.ItemRecorded)

	items, err := svc.AvailableItems(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Фирменная кружка", items[0].RewardName)
	assert.Equal(t, models.ItemAvailable, items[0].Status)
}

func TestConversionFlow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.SettleClaim(ctx, 7, 102, "alice", "Фирменная кружка")
	require.NoError(t, err)

	reqID, err := svc.RequestConversion(ctx, 7, 102)
	require.NoError(t, err)

	// Пока заявка открыта, предмет недоступен для второй конвертации.
	_, err = svc.RequestConversion(ctx, 7, 102)
	assert.Error(t, err)

	pending, err := svc.PendingConversions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	outcome, err := svc.ApproveConversion(ctx, reqID, 99, 250)
	require.NoError(t, err)
	assert.Equal(t, "credited", outcome.Status)
	assert.Equal(t, int64(250), outcome.Amount)

	balance, err := svc.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(250), balance)

	// Повторное решение по той же заявке отклоняется.
	outcome, err = svc.ApproveConversion(ctx, reqID, 99, 250)
	require.NoError(t, err)
	assert.Equal(t, "not_pending", outcome.Status)

	items, err := svc.AvailableItems(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConversionReject(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.SettleClaim(ctx, 7, 103, "alice", "Стикерпак")
	require.NoError(t, err)
	reqID, err := svc.RequestConversion(ctx, 7, 103)
	require.NoError(t, err)

	ok, err := svc.RejectConversion(ctx, reqID, 99, "приз выдаётся только вживую")
	require.NoError(t, err)
	assert.True(t, ok)

	// Предмет возвращается в доступные.
	items, err := svc.AvailableItems(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemAvailable, items[0].Status)

	balance, err := svc.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestCheckLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	code, err := svc.CreateCheck(ctx, 40, 2, 1, nil)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	res, err := svc.ActivateCheck(ctx, code, 10)
	require.NoError(t, err)
	assert.Equal(t, "activated", res.Status)
	assert.Equal(t, int64(40), res.Amount)

	// Один аккаунт активирует чек не более одного раза.
	res, err = svc.ActivateCheck(ctx, code, 10)
	require.NoError(t, err)
	assert.Equal(t, "already", res.Status)

	res, err = svc.ActivateCheck(ctx, code, 11)
	require.NoError(t, err)
	assert.Equal(t, "activated", res.Status)

	// Лимит исчерпан, чек закрыт.
	res, err = svc.ActivateCheck(ctx, code, 12)
	require.NoError(t, err)
	assert.Equal(t, "inactive", res.Status)

	balance, err := svc.Balance(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
}

func TestCheckValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CreateCheck(ctx, 0, 1, 1, nil)
	assert.Error(t, err)
	_, err = svc.CreateCheck(ctx, 10, 0, 1, nil)
	assert.Error(t, err)

	res, err := svc.ActivateCheck(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, "not_found", res.Status)
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	res, err := svc.ApplyDelta(ctx, 1, 100, models.SourceAdmin, 1)
	require.NoError(t, err)
	require.Equal(t, models.ApplyApplied, res.Status)
	res, err = svc.ApplyDelta(ctx, 1, -60, "purchase", 5)
	require.NoError(t, err)
	require.Equal(t, models.ApplyApplied, res.Status)

	credited, err := svc.Refund(ctx, 1, 60, "purchase", 5)
	require.NoError(t, err)
	assert.True(t, credited)

	// Повторный возврат по тому же источнику игнорируется.
	credited, err = svc.Refund(ctx, 1, 60, "purchase", 5)
	require.NoError(t, err)
	assert.False(t, credited)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}
