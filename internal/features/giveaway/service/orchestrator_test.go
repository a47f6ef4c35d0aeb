package service

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	channelmodels "drops-backend/internal/features/channel/models"
	drawmodels "drops-backend/internal/features/draw/models"
	ledgerservice "drops-backend/internal/features/ledger/service"
	rewardmodels "drops-backend/internal/features/reward/models"
	rewardservice "drops-backend/internal/features/reward/service"
	triggermodels "drops-backend/internal/features/trigger/models"
)

type fixture struct {
	o        *Orchestrator
	draws    *MemoryDraws
	rewards  *MemoryRewards
	triggers *MemoryTriggers
	watch    *MemoryWatch
	identity *MemoryIdentity
	planned  *MemoryPlanned
	ledger   *ledgerservice.LedgerService
	chat     *FakeChat
	names    map[int64]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	names := make(map[int64]string)
	f := &fixture{
		draws:    NewMemoryDraws(names),
		rewards:  NewMemoryRewards(),
		triggers: NewMemoryTriggers(),
		watch:    NewMemoryWatch(),
		identity: NewMemoryIdentity(),
		ledger:   ledgerservice.NewLedgerService(ledgerservice.NewMemoryLedger(), zerolog.Nop()),
		chat:     NewFakeChat(),
		names:    names,
	}
	f.planned = NewMemoryPlanned(f.rewards)

	rng := rand.New(rand.NewSource(1))
	f.o = NewOrchestrator(Deps{
		Channel: channelmodels.Channel{ID: 1, Login: "streamer", Enabled: true},
		Settings: Settings{
			MinInterval:     10 * time.Minute,
			MaxInterval:     30 * time.Minute,
			ActiveTimeout:   15 * time.Minute,
			ClaimTimeout:    7 * time.Minute,
			StreamCheck:     time.Minute,
			TriggerPoll:     2 * time.Second,
			ExpireInterval:  30 * time.Second,
			SessionEligible: 600,
			WatchMaxGap:     300 * time.Second,
			DropsEnabled:    true,
		},
		Logger:    zerolog.Nop(),
		Draws:     f.draws,
		Rewards:   f.rewards,
		Triggers:  f.triggers,
		Watch:     f.watch,
		Identity:  f.identity,
		Planned:   f.planned,
		Ledger:    f.ledger,
		Selector:  rewardservice.NewSelector(rng),
		Rng:       rng,
		Announcer: f.chat,
		Notifier:  f.chat,
		Live:      f.chat,
		Clips:     f.chat,
	})
	return f
}

func (f *fixture) addReward(t *testing.T, name string, weight int, enabled bool) int64 {
	t.Helper()
	ch := int64(1)
	id, err := f.rewards.Create(context.Background(), rewardmodels.Reward{
		ChannelID: &ch, Name: name, Weight: weight, Quantity: 1, Enabled: enabled,
	})
	require.NoError(t, err)
	f.names[id] = name
	return id
}

func (f *fixture) goOnline(t *testing.T) int64 {
	t.Helper()
	f.o.onStreamStart(context.Background())
	sessionID, online := f.o.session()
	require.True(t, online)
	return sessionID
}

func announcedContains(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestChatClaimsPendingDrawAndCreditsGoldOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rewardID := f.addReward(t, "50 GOLD", 10, true)
	f.identity.Link(101, "alice")

	now := time.Now()
	drawID, err := f.draws.CreatePending(ctx, "streamer", "alice", rewardID, now.Add(7*time.Minute))
	require.NoError(t, err)

	require.NoError(t, f.o.HandleChat(ctx, "Alice", "привет", now))

	d := f.draws.Get(drawID)
	require.NotNil(t, d)
	assert.Equal(t, drawmodels.StatusClaimed, d.Status)

	balance, err := f.ledger.Balance(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	// Второе сообщение ничего не дублирует: забирать больше нечего.
	require.NoError(t, f.o.HandleChat(ctx, "alice", "ещё раз", now.Add(time.Second)))
	balance, err = f.ledger.Balance(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	assert.True(t, announcedContains(f.chat.Announced(), "забирает приз"))
}

func TestExpiredDrawIsNotClaimable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rewardID := f.addReward(t, "100 GOLD", 10, true)
	f.identity.Link(101, "alice")

	now := time.Now()
	drawID, err := f.draws.CreatePending(ctx, "streamer", "alice", rewardID, now.Add(-time.Minute))
	require.NoError(t, err)

	expired, err := f.draws.ExpireDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	require.NoError(t, f.o.HandleChat(ctx, "alice", "я тут", now))

	d := f.draws.Get(drawID)
	assert.Equal(t, drawmodels.StatusExpired, d.Status)
	balance, err := f.ledger.Balance(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestItemRewardBecomesClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rewardID := f.addReward(t, "Фирменная кружка", 5, true)
	f.identity.Link(101, "alice")

	now := time.Now()
	_, err := f.draws.CreatePending(ctx, "streamer", "alice", rewardID, now.Add(7*time.Minute))
	require.NoError(t, err)
	require.NoError(t, f.o.HandleChat(ctx, "alice", "привет", now))

	items, err := f.ledger.AvailableItems(ctx, 101)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Фирменная кружка", items[0].RewardName)
}

func TestUnlinkedWinnerSettlesAfterLinking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rewardID := f.addReward(t, "50 GOLD", 10, true)

	now := time.Now()
	_, err := f.draws.CreatePending(ctx, "streamer", "alice", rewardID, now.Add(7*time.Minute))
	require.NoError(t, err)

	// Выигрыш забран, но аккаунт не привязан: золото подождёт.
	require.NoError(t, f.o.HandleChat(ctx, "alice", "привет", now))
	balance, err := f.ledger.Balance(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	require.NoError(t, f.identity.CreateVerification(ctx, 101, "code-7"))
	require.NoError(t, f.o.HandleChat(ctx, "alice", "!link code-7", now.Add(time.Second)))

	balance, err = f.ledger.Balance(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestTriggerConsumedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.triggers.Enqueue(ctx, triggermodels.Trigger{Type: triggermodels.TypeRandom, ChannelID: 1})
	require.NoError(t, err)

	first, err := f.triggers.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.triggers.Dequeue(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestRandomDropUsesRecencyWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addReward(t, "50 GOLD", 10, true)

	f.goOnline(t)
	now := time.Now()
	// alice писала только что, стаж на стриме нулевой — для случайного
	// дропа это не помеха. bob молчит дольше active-таймаута и выпадает.
	require.NoError(t, f.watch.Touch(ctx, "streamer", "alice", now))
	require.NoError(t, f.watch.Touch(ctx, "streamer", "bob", now.Add(-20*time.Minute)))

	require.NoError(t, f.o.runRandomDrop(ctx, nil, 0))

	claimed, err := f.draws.ClaimPending(ctx, "alice", now)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
	claimed, err = f.draws.ClaimPending(ctx, "bob", now)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestRandomDropWinnersFollowRewardQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ch := int64(1)
	id, err := f.rewards.Create(ctx, rewardmodels.Reward{
		ChannelID: &ch, Name: "Стикерпак", Weight: 10, Quantity: 3, Enabled: true,
	})
	require.NoError(t, err)
	f.names[id] = "Стикерпак"

	now := time.Now()
	viewers := []string{"alice", "bob", "carol"}
	for _, nick := range viewers {
		require.NoError(t, f.watch.Touch(ctx, "streamer", nick, now))
	}

	require.NoError(t, f.o.runRandomDrop(ctx, nil, 0))

	// quantity=3 при трёх активных зрителях — приз каждому, без повторов.
	for _, nick := range viewers {
		claimed, err := f.draws.ClaimPending(ctx, nick, now)
		require.NoError(t, err)
		assert.Len(t, claimed, 1, nick)
	}
}

func TestPlannedGiveawayRunsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.identity.Link(101, "alice")

	p, err := f.planned.CreatePlanned(ctx, 1, "Финал", "Худи", 1, "planned", nil)
	require.NoError(t, err)
	f.names[p.RewardID] = "Худи"

	sessionID := f.goOnline(t)
	require.NoError(t, f.watch.Touch(ctx, "streamer", "alice", time.Now()))
	f.watch.SetSessionSeconds(sessionID, "alice", 700)

	trig := triggermodels.Trigger{Type: triggermodels.TypePlanned, ChannelID: 1, PlannedGiveawayID: &p.ID}
	_, err = f.triggers.Enqueue(ctx, trig)
	require.NoError(t, err)

	got, err := f.triggers.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NoError(t, f.o.processTrigger(ctx, got))

	items, err := f.ledger.AvailableItems(ctx, 101)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Худи", items[0].RewardName)

	// Повторный запуск того же розыгрыша не проходит.
	require.NoError(t, f.o.runPlanned(ctx, p.ID))
	items, err = f.ledger.AvailableItems(ctx, 101)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGuessGameFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rewardID := f.addReward(t, "200 GOLD", 0, false)
	f.identity.Link(101, "alice")

	sessionID := f.goOnline(t)
	now := time.Now()
	require.NoError(t, f.watch.Touch(ctx, "streamer", "alice", now))
	f.watch.SetSessionSeconds(sessionID, "alice", 700)

	number, lo, hi := 42, 1, 100
	trig := triggermodels.Trigger{
		Type: triggermodels.TypeGuess, ChannelID: 1, RewardID: &rewardID,
		GuessNumber: &number, GuessMin: &lo, GuessMax: &hi,
	}
	_, err := f.triggers.Enqueue(ctx, trig)
	require.NoError(t, err)
	got, err := f.triggers.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.o.processTrigger(ctx, got))
	assert.True(t, announcedContains(f.chat.Announced(), "Угадай число"))

	// Бобу не хватает стажа: игра остаётся активной, уходит предупреждение.
	require.NoError(t, f.o.HandleChat(ctx, "bob", "42", now))
	_, active := f.o.game.Active()
	require.True(t, active)
	assert.True(t, announcedContains(f.chat.Announced(), "со стажем"))

	// alice стаж насмотрела, её точное попадание закрывает игру.
	require.NoError(t, f.o.HandleChat(ctx, "alice", "42", now.Add(time.Second)))
	_, active = f.o.game.Active()
	assert.False(t, active)

	balance, err := f.ledger.Balance(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)
}

func TestTriggerSkippedWhenOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addReward(t, "50 GOLD", 10, true)
	now := time.Now()
	require.NoError(t, f.watch.Touch(ctx, "streamer", "alice", now))

	// Эфир не идёт: триггер поглощён без розыгрыша.
	require.NoError(t, f.o.processTrigger(ctx, &triggermodels.Trigger{Type: triggermodels.TypeRandom, ChannelID: 1}))

	claimed, err := f.draws.ClaimPending(ctx, "alice", now)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestTriggerSkippedWhenDropsDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addReward(t, "50 GOLD", 10, true)

	f.goOnline(t)
	f.o.deps.Settings.DropsEnabled = false
	now := time.Now()
	require.NoError(t, f.watch.Touch(ctx, "streamer", "alice", now))

	require.NoError(t, f.o.processTrigger(ctx, &triggermodels.Trigger{Type: triggermodels.TypeRandom, ChannelID: 1}))

	claimed, err := f.draws.ClaimPending(ctx, "alice", now)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestGuessOutOfRangeIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rewardID := f.addReward(t, "200 GOLD", 0, false)

	f.goOnline(t)
	f.o.game.Start(rewardID, 42, 1, 100)

	// Число вне диапазона — обычное сообщение: ни предупреждения, ни подсказки.
	before := len(f.chat.Announced())
	require.NoError(t, f.o.HandleChat(ctx, "bob", "5000", time.Now()))

	assert.Len(t, f.chat.Announced(), before)
	_, active := f.o.game.Active()
	assert.True(t, active)
}

func TestEndGiveawayKeepsSessionFloor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.identity.Link(101, "bob")

	p, err := f.planned.CreatePlanned(ctx, 1, "Прощальный", "Стикерпак", 1, "end", nil)
	require.NoError(t, err)
	f.names[p.RewardID] = "Стикерпак"

	f.goOnline(t)
	// bob писал недавно, но стаж на стриме нулевой — финальный розыгрыш
	// ему не достаётся.
	require.NoError(t, f.watch.Touch(ctx, "streamer", "bob", time.Now()))

	f.o.onStreamEnd(ctx)

	items, err := f.ledger.AvailableItems(ctx, 101)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, announcedContains(f.chat.Announced(), "не состоялся"))
}

func TestStreamEndRunsEndGiveawaysAndResetsGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.identity.Link(101, "alice")

	p, err := f.planned.CreatePlanned(ctx, 1, "Прощальный", "Стикерпак", 1, "end", nil)
	require.NoError(t, err)
	f.names[p.RewardID] = "Стикерпак"

	sessionID := f.goOnline(t)
	require.NoError(t, f.watch.Touch(ctx, "streamer", "alice", time.Now()))
	f.watch.SetSessionSeconds(sessionID, "alice", 700)

	rewardID := f.addReward(t, "10 GOLD", 0, false)
	f.o.game.Start(rewardID, 5, 1, 100)

	f.o.onStreamEnd(ctx)

	_, active := f.o.game.Active()
	assert.False(t, active)

	items, err := f.ledger.AvailableItems(ctx, 101)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Стикерпак", items[0].RewardName)

	_, online := f.o.session()
	assert.False(t, online)
}
