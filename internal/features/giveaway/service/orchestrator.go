package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	channelmodels "drops-backend/internal/features/channel/models"
	drawrepo "drops-backend/internal/features/draw/repository"
	givemodels "drops-backend/internal/features/giveaway/models"
	giverepo "drops-backend/internal/features/giveaway/repository"
	"drops-backend/internal/features/guess"
	identityrepo "drops-backend/internal/features/identity/repository"
	ledgerservice "drops-backend/internal/features/ledger/service"
	rewardmodels "drops-backend/internal/features/reward/models"
	rewardrepo "drops-backend/internal/features/reward/repository"
	rewardservice "drops-backend/internal/features/reward/service"
	triggermodels "drops-backend/internal/features/trigger/models"
	triggerrepo "drops-backend/internal/features/trigger/repository"
	watchrepo "drops-backend/internal/features/watchtime/repository"
)

const linkCommand = "!link"

// Settings are the resolved timings for one channel: global defaults merged
// with the channel_settings overrides.
type Settings struct {
	MinInterval     time.Duration
	MaxInterval     time.Duration
	ActiveTimeout   time.Duration
	ClaimTimeout    time.Duration
	StreamCheck     time.Duration
	TriggerPoll     time.Duration
	ExpireInterval  time.Duration
	SessionEligible int64 // секунды просмотра текущего стрима
	WatchMaxGap     time.Duration
	DropsEnabled    bool
}

// Deps wires one channel's orchestrator.
type Deps struct {
	Channel  channelmodels.Channel
	Settings Settings
	Logger   zerolog.Logger

	Draws    drawrepo.DrawRepository
	Rewards  rewardrepo.RewardRepository
	Triggers triggerrepo.TriggerRepository
	Watch    watchrepo.WatchTimeRepository
	Identity identityrepo.IdentityRepository
	Planned  giverepo.GiveawayRepository
	Ledger   *ledgerservice.LedgerService

	Selector *rewardservice.Selector
	Rng      *rand.Rand

	Announcer Announcer
	Notifier  Notifier
	Live      LiveChecker
	Clips     ClipCreator
}

// Orchestrator запускает дропы на одном канале: случайные по таймеру,
// ручные из очереди триггеров, плановые и игру «угадай число». Очередь
// триггеров читает только он, поэтому каждый триггер срабатывает один раз.
type Orchestrator struct {
	deps Deps
	log  zerolog.Logger
	game *guess.Game

	mu        sync.Mutex
	sessionID int64
	online    bool
}

func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps: deps,
		log:  deps.Logger.With().Str("channel", deps.Channel.Login).Logger(),
		game: guess.New(deps.Rng, nil),
	}
}

// Run blocks until ctx is cancelled, driving the channel's loops.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, loop := range []func(context.Context){
		o.giveawayLoop,
		o.triggerLoop,
		o.expireLoop,
		o.streamLoop,
	} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(loop)
	}
	wg.Wait()
}

func (o *Orchestrator) session() (int64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID, o.online
}

// HandleChat processes one chat line: accrues watch time, claims pending
// wins, and routes guesses and link codes.
func (o *Orchestrator) HandleChat(ctx context.Context, nickname, message string, now time.Time) error {
	nickname = strings.ToLower(strings.TrimSpace(nickname))
	if nickname == "" {
		return nil
	}

	if err := o.recordActivity(ctx, nickname, now); err != nil {
		return err
	}
	if err := o.claimPending(ctx, nickname, now); err != nil {
		return err
	}

	message = strings.TrimSpace(message)
	if code, ok := strings.CutPrefix(message, linkCommand+" "); ok {
		return o.verifyLink(ctx, nickname, strings.TrimSpace(code))
	}
	if value, err := strconv.Atoi(message); err == nil {
		return o.handleGuess(ctx, nickname, value, now)
	}
	return nil
}

func (o *Orchestrator) recordActivity(ctx context.Context, nickname string, now time.Time) error {
	if err := o.deps.Watch.Touch(ctx, o.deps.Channel.Login, nickname, now); err != nil {
		return err
	}
	if err := o.deps.Watch.AccrueLifetime(ctx, o.deps.Channel.Login, nickname, now, o.deps.Settings.WatchMaxGap); err != nil {
		return err
	}
	if sessionID, ok := o.session(); ok {
		return o.deps.Watch.AccrueSession(ctx, sessionID, nickname, now, o.deps.Settings.WatchMaxGap)
	}
	return nil
}

func (o *Orchestrator) claimPending(ctx context.Context, nickname string, now time.Time) error {
	claimed, err := o.deps.Draws.ClaimPending(ctx, nickname, now)
	if err != nil {
		return err
	}
	for _, c := range claimed {
		o.log.Info().Str("nickname", nickname).Str("reward", c.RewardName).Int64("draw_id", c.DrawID).Msg("draw claimed")
		o.announce(ctx, fmt.Sprintf("@%s забирает приз: %s!", nickname, c.RewardName))
		o.settle(ctx, c.DrawID, nickname, c.RewardName)
	}
	return nil
}

// settle оформляет подтверждённый выигрыш, если аккаунт привязан. Без
// привязки запись остаётся в draws и будет оформлена после привязки.
func (o *Orchestrator) settle(ctx context.Context, drawID int64, nickname, rewardName string) {
	accountID, linked, err := o.deps.Identity.AccountByNickname(ctx, nickname)
	if err != nil {
		o.log.Error().Err(err).Str("nickname", nickname).Msg("identity lookup failed")
		return
	}
	if !linked {
		return
	}
	outcome, err := o.deps.Ledger.SettleClaim(ctx, accountID, drawID, nickname, rewardName)
	if err != nil {
		o.log.Error().Err(err).Int64("draw_id", drawID).Msg("settlement failed")
		return
	}
	switch {
	case outcome.GoldCredited > 0:
		o.notify(ctx, accountID, fmt.Sprintf("Начислено %d GOLD за приз «%s».", outcome.GoldCredited, rewardName))
	case outcome.ItemRecorded:
		o.notify(ctx, accountID, fmt.Sprintf("Приз «%s» ждёт вас в личном кабинете.", rewardName))
	}
	if err := o.deps.Draws.MarkNotified(ctx, []int64{drawID}); err != nil {
		o.log.Error().Err(err).Int64("draw_id", drawID).Msg("mark notified failed")
	}
}

func (o *Orchestrator) verifyLink(ctx context.Context, nickname, code string) error {
	if code == "" {
		return nil
	}
	accountID, ok, err := o.deps.Identity.VerifyLink(ctx, nickname, code)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	o.log.Info().Str("nickname", nickname).Int64("account_id", accountID).Msg("account linked")
	o.announce(ctx, fmt.Sprintf("@%s, аккаунт привязан.", nickname))
	o.notify(ctx, accountID, fmt.Sprintf("Ник %s подтверждён.", nickname))

	// Невыданные выигрыши дооформляем сразу после привязки.
	summaries, err := o.deps.Draws.PendingNotifications(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		if s.Nickname == nickname {
			o.settle(ctx, s.DrawID, s.Nickname, s.RewardName)
		}
	}
	return nil
}

func (o *Orchestrator) handleGuess(ctx context.Context, nickname string, value int, now time.Time) error {
	if _, active := o.game.Active(); !active {
		return nil
	}
	// Числа вне диапазона — обычный чат, не угадывание.
	if lo, hi := o.game.Range(); value < lo || value > hi {
		return nil
	}

	sessionID, online := o.session()
	eligible := false
	if online {
		seconds, err := o.deps.Watch.SessionSeconds(ctx, sessionID, nickname)
		if err != nil {
			return err
		}
		eligible = seconds >= o.deps.Settings.SessionEligible
	}

	// Стаж решает только точное попадание: подсказки получают все.
	outcome, rewardID := o.game.Evaluate(nickname, value, eligible)
	switch outcome {
	case guess.OutcomeWin:
		return o.finishGuess(ctx, nickname, rewardID, value)
	case guess.OutcomeIneligible:
		if o.game.NoteIneligible() {
			o.announce(ctx, fmt.Sprintf("@%s, в игре участвуют зрители со стажем от %d минут на этом стриме.",
				nickname, o.deps.Settings.SessionEligible/60))
		}
	case guess.OutcomeHigher:
		o.announce(ctx, fmt.Sprintf("@%s, загаданное число больше.", nickname))
	case guess.OutcomeLower:
		o.announce(ctx, fmt.Sprintf("@%s, загаданное число меньше.", nickname))
	}
	return nil
}

func (o *Orchestrator) finishGuess(ctx context.Context, nickname string, rewardID int64, value int) error {
	reward, err := o.deps.Rewards.GetByID(ctx, rewardID)
	if err != nil {
		return err
	}
	drawID, err := o.deps.Draws.CreateClaimed(ctx, o.deps.Channel.Login, nickname, rewardID, false)
	if err != nil {
		return err
	}
	o.log.Info().Str("nickname", nickname).Int("number", value).Int64("draw_id", drawID).Msg("guess game won")
	o.announce(ctx, fmt.Sprintf("@%s угадывает число %d и забирает приз: %s!", nickname, value, reward.Name))
	o.settle(ctx, drawID, nickname, reward.Name)
	return nil
}

// giveawayLoop runs random drops at a random interval inside the window.
func (o *Orchestrator) giveawayLoop(ctx context.Context) {
	for {
		wait := o.deps.Settings.MinInterval
		if span := o.deps.Settings.MaxInterval - o.deps.Settings.MinInterval; span > 0 {
			wait += time.Duration(o.deps.Rng.Int63n(int64(span)))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if _, online := o.session(); !online || !o.deps.Settings.DropsEnabled {
			continue
		}
		if err := o.runRandomDrop(ctx, nil, 0); err != nil {
			o.log.Error().Err(err).Msg("random drop failed")
		}
	}
}

// runRandomDrop picks winners from the recently active audience and creates
// pending draws they must claim by chatting inside the window. The pool is
// recency-based only; session watch time plays no part in random drops. Zero
// winnersOverride means the reward's quantity decides the winner count.
func (o *Orchestrator) runRandomDrop(ctx context.Context, rewardID *int64, winnersOverride int) error {
	now := time.Now()
	candidates, err := o.deps.Watch.ActiveNicknames(ctx, o.deps.Channel.Login, now.Add(-o.deps.Settings.ActiveTimeout))
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		o.log.Info().Msg("no active viewers, drop skipped")
		return nil
	}

	reward, err := o.pickReward(ctx, rewardID)
	if err != nil {
		if errors.Is(err, rewardservice.ErrEmptyCatalog) {
			o.log.Warn().Msg("reward catalog is empty, drop skipped")
			return nil
		}
		return err
	}

	winnersCount := reward.Quantity
	if winnersOverride > 0 {
		winnersCount = winnersOverride
	}
	if winnersCount < 1 {
		winnersCount = 1
	}
	winners, err := o.deps.Selector.SampleWinners(candidates, winnersCount)
	if err != nil {
		return err
	}

	expiresAt := now.Add(o.deps.Settings.ClaimTimeout)
	for _, winner := range winners {
		drawID, err := o.deps.Draws.CreatePending(ctx, o.deps.Channel.Login, winner, reward.ID, expiresAt)
		if err != nil {
			return err
		}
		o.log.Info().Str("nickname", winner).Str("reward", reward.Name).Int64("draw_id", drawID).Msg("pending draw created")
		o.announce(ctx, fmt.Sprintf("@%s выигрывает «%s»! Напиши что-нибудь в чат в течение %d минут, чтобы забрать приз.",
			winner, reward.Name, int(o.deps.Settings.ClaimTimeout.Minutes())))
	}
	return nil
}

// runInstant settles winners immediately: draws are born claimed.
func (o *Orchestrator) runInstant(ctx context.Context, rewardID int64, winnersCount int, title string) error {
	now := time.Now()
	candidates, err := o.deps.Watch.ActiveNicknames(ctx, o.deps.Channel.Login, now.Add(-o.deps.Settings.ActiveTimeout))
	if err != nil {
		return err
	}
	if sessionID, online := o.session(); online {
		candidates, err = o.deps.Watch.EligibleNicknames(ctx, sessionID, candidates, o.deps.Settings.SessionEligible)
		if err != nil {
			return err
		}
	}
	winners, err := o.deps.Selector.SampleWinners(candidates, winnersCount)
	if err != nil {
		return err
	}
	if len(winners) == 0 {
		o.announce(ctx, fmt.Sprintf("Розыгрыш «%s» не состоялся: нет подходящих зрителей.", title))
		return nil
	}

	reward, err := o.deps.Rewards.GetByID(ctx, rewardID)
	if err != nil {
		return err
	}
	for _, winner := range winners {
		drawID, err := o.deps.Draws.CreateClaimed(ctx, o.deps.Channel.Login, winner, reward.ID, false)
		if err != nil {
			return err
		}
		o.announce(ctx, fmt.Sprintf("Розыгрыш «%s»: @%s забирает «%s»!", title, winner, reward.Name))
		o.settle(ctx, drawID, winner, reward.Name)
	}
	return nil
}

func (o *Orchestrator) pickReward(ctx context.Context, rewardID *int64) (rewardmodels.Reward, error) {
	if rewardID != nil {
		r, err := o.deps.Rewards.GetByID(ctx, *rewardID)
		if err != nil {
			return rewardmodels.Reward{}, err
		}
		return *r, nil
	}
	enabled, err := o.deps.Rewards.ListEnabled(ctx, o.deps.Channel.ID)
	if err != nil {
		return rewardmodels.Reward{}, err
	}
	return o.deps.Selector.SelectWeighted(enabled)
}

// triggerLoop is the queue's single consumer.
func (o *Orchestrator) triggerLoop(ctx context.Context) {
	ticker := time.NewTicker(o.deps.Settings.TriggerPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			t, err := o.deps.Triggers.Dequeue(ctx, o.deps.Channel.ID)
			if err != nil {
				o.log.Error().Err(err).Msg("trigger dequeue failed")
				break
			}
			if t == nil {
				break
			}
			if err := o.processTrigger(ctx, t); err != nil {
				o.log.Error().Err(err).Int64("trigger_id", t.ID).Str("type", string(t.Type)).Msg("trigger failed")
			}
		}
	}
}

func (o *Orchestrator) processTrigger(ctx context.Context, t *triggermodels.Trigger) error {
	// Розыгрыши идут только в эфире и при включённых дропах; клипы —
	// исключение. Триггер при этом уже снят с очереди и не вернётся.
	if t.Type != triggermodels.TypeClip {
		if _, online := o.session(); !online {
			o.log.Warn().Int64("trigger_id", t.ID).Str("type", string(t.Type)).Msg("stream offline, trigger skipped")
			return nil
		}
		if !o.deps.Settings.DropsEnabled {
			o.log.Warn().Int64("trigger_id", t.ID).Str("type", string(t.Type)).Msg("drops disabled, trigger skipped")
			return nil
		}
	}

	winners := 0
	if t.WinnersCount != nil && *t.WinnersCount > 0 {
		winners = *t.WinnersCount
	}

	switch t.Type {
	case triggermodels.TypeRandom:
		return o.runRandomDrop(ctx, t.RewardID, winners)

	case triggermodels.TypePlanned:
		if t.PlannedGiveawayID == nil {
			return fmt.Errorf("planned trigger %d has no giveaway id", t.ID)
		}
		return o.runPlanned(ctx, *t.PlannedGiveawayID)

	case triggermodels.TypeGuess:
		return o.startGuessGame(ctx, t)

	case triggermodels.TypeClip:
		clipID, err := o.deps.Clips.CreateClip(ctx, o.deps.Channel.Login)
		if err != nil {
			return err
		}
		o.log.Info().Str("clip_id", clipID).Msg("clip created")
		return nil
	}
	return fmt.Errorf("unknown trigger type %q", t.Type)
}

func (o *Orchestrator) runPlanned(ctx context.Context, plannedID int64) error {
	p, err := o.deps.Planned.GetPlanned(ctx, plannedID)
	if err != nil {
		return err
	}
	ok, err := o.deps.Planned.MarkTriggered(ctx, plannedID)
	if err != nil {
		return err
	}
	if !ok {
		o.log.Warn().Int64("planned_id", plannedID).Msg("planned giveaway already triggered")
		return nil
	}
	return o.runInstant(ctx, p.RewardID, p.WinnersCount, p.Title)
}

func (o *Orchestrator) startGuessGame(ctx context.Context, t *triggermodels.Trigger) error {
	if t.RewardID == nil {
		return fmt.Errorf("guess trigger %d has no reward", t.ID)
	}
	reward, err := o.deps.Rewards.GetByID(ctx, *t.RewardID)
	if err != nil {
		return err
	}
	// NULL channel_id у награды означает «для любого канала».
	if !reward.MatchesChannel(o.deps.Channel.ID) {
		o.log.Warn().Int64("trigger_id", t.ID).Int64("reward_id", reward.ID).Msg("reward belongs to another channel")
		return nil
	}
	number, min, max := 0, 0, 0
	if t.GuessNumber != nil {
		number = *t.GuessNumber
	}
	if t.GuessMin != nil {
		min = *t.GuessMin
	}
	if t.GuessMax != nil {
		max = *t.GuessMax
	}
	_, redrawn := o.game.Start(*t.RewardID, number, min, max)
	if redrawn {
		o.log.Warn().Int64("trigger_id", t.ID).Msg("guess seed out of range, redrawn")
	}
	lo, hi := o.game.Range()
	o.announce(ctx, fmt.Sprintf("Игра! Угадай число от %d до %d — приз «%s».", lo, hi, reward.Name))
	return nil
}

// expireLoop sweeps overdue pending draws.
func (o *Orchestrator) expireLoop(ctx context.Context) {
	ticker := time.NewTicker(o.deps.Settings.ExpireInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		expired, err := o.deps.Draws.ExpireDue(ctx, time.Now())
		if err != nil {
			o.log.Error().Err(err).Msg("expire sweep failed")
			continue
		}
		for _, e := range expired {
			o.log.Info().Str("nickname", e.Nickname).Str("reward", e.RewardName).Int64("draw_id", e.DrawID).Msg("draw expired")
			o.announce(ctx, fmt.Sprintf("@%s не успевает забрать «%s» — приз сгорает.", e.Nickname, e.RewardName))
		}
	}
}

// streamLoop polls the live status with a capped backoff on API errors.
func (o *Orchestrator) streamLoop(ctx context.Context) {
	interval := o.deps.Settings.StreamCheck
	delay := interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		live, err := o.deps.Live.IsLive(ctx, o.deps.Channel.Login)
		if err != nil {
			o.log.Warn().Err(err).Msg("live check failed")
			if delay < 5*interval {
				delay *= 2
			}
			continue
		}
		delay = interval

		_, online := o.session()
		switch {
		case live && !online:
			o.onStreamStart(ctx)
		case !live && online:
			o.onStreamEnd(ctx)
		}
	}
}

func (o *Orchestrator) onStreamStart(ctx context.Context) {
	sessionID, err := o.deps.Watch.StartSession(ctx, o.deps.Channel.Login, time.Now())
	if err != nil {
		o.log.Error().Err(err).Msg("start session failed")
		return
	}
	o.mu.Lock()
	o.sessionID = sessionID
	o.online = true
	o.mu.Unlock()

	o.log.Info().Int64("session_id", sessionID).Msg("stream started")
	o.announce(ctx, "Стрим начался — дропы активны!")

	links, err := o.deps.Identity.List(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("list linked accounts failed")
		return
	}
	for _, l := range links {
		if l.Verified {
			o.notify(ctx, l.AccountID, fmt.Sprintf("Канал %s в эфире.", o.deps.Channel.Login))
		}
	}
}

func (o *Orchestrator) onStreamEnd(ctx context.Context) {
	sessionID, _ := o.session()
	o.log.Info().Int64("session_id", sessionID).Msg("stream ended")

	// Розыгрыши «в конце стрима» срабатывают здесь, не по триггеру.
	// Сессия в этот момент ещё открыта: фильтр по стажу на стриме действует.
	planned, err := o.deps.Planned.ListPlanned(ctx, o.deps.Channel.ID, []givemodels.PlannedStatus{givemodels.PlannedStatusEnd})
	if err != nil {
		o.log.Error().Err(err).Msg("list end giveaways failed")
	} else {
		for _, p := range planned {
			if err := o.runPlanned(ctx, p.ID); err != nil {
				o.log.Error().Err(err).Int64("planned_id", p.ID).Msg("end giveaway failed")
			}
		}
	}

	o.mu.Lock()
	o.online = false
	o.mu.Unlock()

	o.game.Reset()
	if err := o.deps.Watch.EndSession(ctx, sessionID, time.Now()); err != nil {
		o.log.Error().Err(err).Msg("end session failed")
	}

	// Итог стрима: выигрыши, оставшиеся без личного уведомления.
	summaries, err := o.deps.Draws.PendingNotifications(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("claimed summary failed")
		return
	}
	for _, s := range summaries {
		o.settle(ctx, s.DrawID, s.Nickname, s.RewardName)
	}
}

func (o *Orchestrator) announce(ctx context.Context, message string) {
	if err := o.deps.Announcer.Announce(ctx, o.deps.Channel.Login, message); err != nil {
		o.log.Error().Err(err).Msg("announce failed")
	}
}

func (o *Orchestrator) notify(ctx context.Context, accountID int64, message string) {
	if err := o.deps.Notifier.Notify(ctx, accountID, message); err != nil {
		o.log.Error().Err(err).Int64("account_id", accountID).Msg("notify failed")
	}
}
