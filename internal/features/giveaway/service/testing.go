package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "drops-backend/internal/common/errors"
	drawmodels "drops-backend/internal/features/draw/models"
	givemodels "drops-backend/internal/features/giveaway/models"
	identitymodels "drops-backend/internal/features/identity/models"
	rewardmodels "drops-backend/internal/features/reward/models"
	triggermodels "drops-backend/internal/features/trigger/models"
	"drops-backend/internal/features/watchtime"
)

// Фейки в памяти для тестов оркестратора. Поведение повторяет SQL-слой:
// те же статусные переходы и та же защёлка processed_at в очереди.

type MemoryDraws struct {
	mu     sync.Mutex
	nextID int64
	draws  map[int64]*drawmodels.Draw
	names  map[int64]string // reward_id -> name, заполняет тест
}

func NewMemoryDraws(rewardNames map[int64]string) *MemoryDraws {
	return &MemoryDraws{draws: make(map[int64]*drawmodels.Draw), names: rewardNames}
}

func (m *MemoryDraws) Get(id int64) *drawmodels.Draw {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.draws[id]; ok {
		cp := *d
		return &cp
	}
	return nil
}

func (m *MemoryDraws) CreatePending(_ context.Context, channel, nickname string, rewardID int64, expiresAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.draws[m.nextID] = &drawmodels.Draw{
		ID: m.nextID, Channel: channel, Nickname: nickname, RewardID: rewardID,
		CreatedAt: time.Now(), Status: drawmodels.StatusPending, ExpiresAt: &expiresAt,
	}
	return m.nextID, nil
}

func (m *MemoryDraws) CreateClaimed(_ context.Context, channel, nickname string, rewardID int64, notified bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.draws[m.nextID] = &drawmodels.Draw{
		ID: m.nextID, Channel: channel, Nickname: nickname, RewardID: rewardID,
		CreatedAt: time.Now(), Status: drawmodels.StatusClaimed, Notified: notified,
	}
	return m.nextID, nil
}

func (m *MemoryDraws) ClaimPending(_ context.Context, nickname string, now time.Time) ([]drawmodels.ClaimedReward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []drawmodels.ClaimedReward
	for _, d := range m.draws {
		if d.Nickname == nickname && d.Status == drawmodels.StatusPending &&
			d.ExpiresAt != nil && d.ExpiresAt.After(now) {
			d.Status = drawmodels.StatusClaimed
			out = append(out, drawmodels.ClaimedReward{DrawID: d.ID, RewardID: d.RewardID, RewardName: m.names[d.RewardID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DrawID < out[j].DrawID })
	return out, nil
}

func (m *MemoryDraws) ExpireDue(_ context.Context, now time.Time) ([]drawmodels.ExpiredDraw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []drawmodels.ExpiredDraw
	for _, d := range m.draws {
		if d.Status == drawmodels.StatusPending && d.ExpiresAt != nil && !d.ExpiresAt.After(now) {
			d.Status = drawmodels.StatusExpired
			out = append(out, drawmodels.ExpiredDraw{DrawID: d.ID, Nickname: d.Nickname, RewardName: m.names[d.RewardID]})
		}
	}
	return out, nil
}

func (m *MemoryDraws) MarkNotified(_ context.Context, drawIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range drawIDs {
		if d, ok := m.draws[id]; ok {
			d.Notified = true
		}
	}
	return nil
}

func (m *MemoryDraws) PendingNotifications(_ context.Context) ([]drawmodels.ClaimSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []drawmodels.ClaimSummary
	for _, d := range m.draws {
		if d.Status == drawmodels.StatusClaimed && !d.Notified {
			out = append(out, drawmodels.ClaimSummary{DrawID: d.ID, Nickname: d.Nickname, RewardName: m.names[d.RewardID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DrawID < out[j].DrawID })
	return out, nil
}

func (m *MemoryDraws) Stats(_ context.Context, nickname string) (drawmodels.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats drawmodels.Stats
	for _, d := range m.draws {
		if d.Nickname == nickname && d.Status == drawmodels.StatusClaimed {
			stats.Wins++
			if stats.LastWinAt == nil || d.CreatedAt.After(*stats.LastWinAt) {
				at := d.CreatedAt
				stats.LastWinAt = &at
				stats.LastWinReward = m.names[d.RewardID]
			}
		}
	}
	return stats, nil
}

type MemoryRewards struct {
	mu      sync.Mutex
	nextID  int64
	rewards map[int64]*rewardmodels.Reward
}

func NewMemoryRewards() *MemoryRewards {
	return &MemoryRewards{rewards: make(map[int64]*rewardmodels.Reward)}
}

func (m *MemoryRewards) Create(_ context.Context, r rewardmodels.Reward) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.rewards[r.ID] = &r
	return r.ID, nil
}

func (m *MemoryRewards) GetByID(_ context.Context, id int64) (*rewardmodels.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rewards[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("reward not found")
}

func (m *MemoryRewards) ListByChannel(_ context.Context, channelID int64) ([]rewardmodels.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rewardmodels.Reward
	for _, r := range m.rewards {
		if r.MatchesChannel(channelID) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRewards) ListEnabled(_ context.Context, channelID int64) ([]rewardmodels.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rewardmodels.Reward
	for _, r := range m.rewards {
		if r.Enabled && r.MatchesChannel(channelID) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRewards) SetEnabled(_ context.Context, id int64, enabled bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rewards[id]; ok {
		r.Enabled = enabled
		return true, nil
	}
	return false, nil
}

type MemoryTriggers struct {
	mu     sync.Mutex
	nextID int64
	queue  []*triggermodels.Trigger
}

func NewMemoryTriggers() *MemoryTriggers { return &MemoryTriggers{} }

func (m *MemoryTriggers) Enqueue(_ context.Context, t triggermodels.Trigger) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	m.queue = append(m.queue, &t)
	return t.ID, nil
}

func (m *MemoryTriggers) Dequeue(_ context.Context, channelID int64) (*triggermodels.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.queue {
		if t.ChannelID == channelID && t.ProcessedAt == nil {
			now := time.Now()
			t.ProcessedAt = &now
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryTriggers) Pending(_ context.Context, channelID int64) ([]triggermodels.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []triggermodels.Trigger
	for _, t := range m.queue {
		if t.ChannelID == channelID && t.ProcessedAt == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

type watchEntry struct {
	seconds  int64
	lastSeen time.Time
}

type MemoryWatch struct {
	mu       sync.Mutex
	active   map[string]time.Time // channel/nickname -> last_active_at
	lifetime map[string]*watchEntry
	session  map[string]*watchEntry // sessionID/nickname
	sessions map[int64]string       // id -> channel
	openByCh map[string]int64
	nextSess int64
}

func NewMemoryWatch() *MemoryWatch {
	return &MemoryWatch{
		active:   make(map[string]time.Time),
		lifetime: make(map[string]*watchEntry),
		session:  make(map[string]*watchEntry),
		sessions: make(map[int64]string),
		openByCh: make(map[string]int64),
	}
}

func key2(a, b string) string { return a + "\x00" + b }

func (m *MemoryWatch) Touch(_ context.Context, channel, nickname string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[key2(channel, nickname)] = now
	return nil
}

func (m *MemoryWatch) ActiveNicknames(_ context.Context, channel string, since time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := channel + "\x00"
	var out []string
	for k, at := range m.active {
		if strings.HasPrefix(k, prefix) && !at.Before(since) {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

func accrue(e *watchEntry, now time.Time, maxGap time.Duration) {
	e.seconds += int64(watchtime.Accrual(e.lastSeen, now, maxGap).Seconds())
	e.lastSeen = now
}

func (m *MemoryWatch) AccrueLifetime(_ context.Context, channel, nickname string, now time.Time, maxGap time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key2(channel, nickname)
	e, ok := m.lifetime[k]
	if !ok {
		e = &watchEntry{}
		m.lifetime[k] = e
	}
	accrue(e, now, maxGap)
	return nil
}

func (m *MemoryWatch) AccrueSession(_ context.Context, sessionID int64, nickname string, now time.Time, maxGap time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key2(sessKey(sessionID), nickname)
	e, ok := m.session[k]
	if !ok {
		e = &watchEntry{}
		m.session[k] = e
	}
	accrue(e, now, maxGap)
	return nil
}

func sessKey(id int64) string { return strconv.FormatInt(id, 10) }

// SetSessionSeconds задаёт стаж напрямую, минуя накопление.
func (m *MemoryWatch) SetSessionSeconds(sessionID int64, nickname string, seconds int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session[key2(sessKey(sessionID), nickname)] = &watchEntry{seconds: seconds}
}

func (m *MemoryWatch) LifetimeSeconds(_ context.Context, channel, nickname string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.lifetime[key2(channel, nickname)]; ok {
		return e.seconds, nil
	}
	return 0, nil
}

func (m *MemoryWatch) SessionSeconds(_ context.Context, sessionID int64, nickname string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.session[key2(sessKey(sessionID), nickname)]; ok {
		return e.seconds, nil
	}
	return 0, nil
}

func (m *MemoryWatch) EligibleNicknames(_ context.Context, sessionID int64, nicknames []string, minSeconds int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, n := range nicknames {
		if e, ok := m.session[key2(sessKey(sessionID), n)]; ok && e.seconds >= minSeconds {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MemoryWatch) StartSession(_ context.Context, channel string, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSess++
	m.sessions[m.nextSess] = channel
	m.openByCh[channel] = m.nextSess
	return m.nextSess, nil
}

func (m *MemoryWatch) EndSession(_ context.Context, sessionID int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.sessions[sessionID]; ok && m.openByCh[ch] == sessionID {
		delete(m.openByCh, ch)
	}
	return nil
}

func (m *MemoryWatch) OpenSession(_ context.Context, channel string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.openByCh[channel]
	return id, ok, nil
}

type MemoryIdentity struct {
	mu    sync.Mutex
	links map[int64]*identitymodels.Link // по account_id
}

func NewMemoryIdentity() *MemoryIdentity {
	return &MemoryIdentity{links: make(map[int64]*identitymodels.Link)}
}

// Link привязывает ник без верификации, для подготовки теста.
func (m *MemoryIdentity) Link(accountID int64, nickname string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[accountID] = &identitymodels.Link{AccountID: accountID, Nickname: nickname, Verified: true}
}

func (m *MemoryIdentity) CreateVerification(_ context.Context, accountID int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[accountID] = &identitymodels.Link{AccountID: accountID, Nickname: code, Verified: false}
	return nil
}

func (m *MemoryIdentity) VerifyLink(_ context.Context, nickname, code string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if !l.Verified && l.Nickname == code {
			l.Nickname = nickname
			l.Verified = true
			return l.AccountID, true, nil
		}
	}
	return 0, false, nil
}

func (m *MemoryIdentity) AccountByNickname(_ context.Context, nickname string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Verified && l.Nickname == nickname {
			return l.AccountID, true, nil
		}
	}
	return 0, false, nil
}

func (m *MemoryIdentity) NicknameByAccount(_ context.Context, accountID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[accountID]; ok && l.Verified {
		return l.Nickname, true, nil
	}
	return "", false, nil
}

func (m *MemoryIdentity) List(_ context.Context) ([]identitymodels.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []identitymodels.Link
	for _, l := range m.links {
		out = append(out, *l)
	}
	return out, nil
}

type MemoryPlanned struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]*givemodels.Planned
	rewards *MemoryRewards
}

func NewMemoryPlanned(rewards *MemoryRewards) *MemoryPlanned {
	return &MemoryPlanned{items: make(map[int64]*givemodels.Planned), rewards: rewards}
}

func (m *MemoryPlanned) CreatePlanned(ctx context.Context, channelID int64, title, rewardName string, winnersCount int, status givemodels.PlannedStatus, createdBy *int64) (*givemodels.Planned, error) {
	rewardID, err := m.rewards.Create(ctx, rewardmodels.Reward{
		ChannelID: &channelID, Name: rewardName, Weight: 0, Quantity: winnersCount, Enabled: false,
	})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := &givemodels.Planned{
		ID: m.nextID, ChannelID: channelID, RewardID: rewardID, Title: title,
		WinnersCount: winnersCount, Status: status, CreatedBy: createdBy, CreatedAt: time.Now(),
	}
	m.items[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *MemoryPlanned) GetPlanned(_ context.Context, id int64) (*givemodels.Planned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.items[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("planned giveaway not found")
}

func (m *MemoryPlanned) ListPlanned(_ context.Context, channelID int64, statuses []givemodels.PlannedStatus) ([]givemodels.Planned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := func(s givemodels.PlannedStatus) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if s == want {
				return true
			}
		}
		return false
	}
	var out []givemodels.Planned
	for _, p := range m.items {
		if p.ChannelID == channelID && match(p.Status) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryPlanned) SetPlannedStatus(_ context.Context, id int64, status givemodels.PlannedStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Status == givemodels.PlannedStatusTriggered {
		return apperrors.NewConflictError("planned giveaway is already triggered or missing")
	}
	p.Status = status
	return nil
}

func (m *MemoryPlanned) MarkTriggered(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.Status == givemodels.PlannedStatusTriggered {
		return false, nil
	}
	now := time.Now()
	p.Status = givemodels.PlannedStatusTriggered
	p.TriggeredAt = &now
	return true, nil
}

// FakeChat собирает объявления и личные сообщения, отправленные ботом.
type FakeChat struct {
	mu       sync.Mutex
	Messages []string
	Private  map[int64][]string
	live     bool
}

func NewFakeChat() *FakeChat { return &FakeChat{Private: make(map[int64][]string)} }

func (f *FakeChat) Announce(_ context.Context, _, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, message)
	return nil
}

func (f *FakeChat) Notify(_ context.Context, accountID int64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Private[accountID] = append(f.Private[accountID], message)
	return nil
}

func (f *FakeChat) SetLive(live bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = live
}

func (f *FakeChat) IsLive(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live, nil
}

func (f *FakeChat) CreateClip(_ context.Context, _ string) (string, error) {
	return "clip-1", nil
}

func (f *FakeChat) Announced() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Messages))
	copy(out, f.Messages)
	return out
}
