package guess

import (
	"math/rand"
	"sync"
	"time"
)

const (
	hintProbability    = 0.35
	globalHintInterval = 2500 * time.Millisecond
	userHintInterval   = 12 * time.Second
	ineligibleInterval = 10 * time.Second

	defaultMin = 1
	defaultMax = 100
)

// Outcome is the result of one guess.
type Outcome int

const (
	OutcomeNone       Outcome = iota // wrong, no hint issued
	OutcomeWin                       // exact match, game over
	OutcomeHigher                    // hint: the number is higher
	OutcomeLower                     // hint: the number is lower
	OutcomeIneligible                // exact match below the watch-time floor, game stays open
)

// Game — угадай число. Одна игра на канал, живёт только в памяти: рестарт
// процесса просто снимает игру, незакрытых обязательств у неё нет.
type Game struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time

	active   bool
	rewardID int64
	number   int
	min, max int

	lastHintAt       time.Time
	lastUserHintAt   map[string]time.Time
	lastIneligibleAt time.Time
}

func New(rng *rand.Rand, now func() time.Time) *Game {
	if now == nil {
		now = time.Now
	}
	return &Game{rng: rng, now: now}
}

// Start opens a game for the reward. A degenerate range falls back to
// [1,100]; a seed outside the range is redrawn uniformly inside it, so the
// target is always guessable.
func (g *Game) Start(rewardID int64, number, min, max int) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if min >= max {
		min, max = defaultMin, defaultMax
	}
	redrawn := false
	if number < min || number > max {
		number = min + g.rng.Intn(max-min+1)
		redrawn = true
	}

	g.active = true
	g.rewardID = rewardID
	g.number = number
	g.min = min
	g.max = max
	g.lastHintAt = time.Time{}
	g.lastUserHintAt = make(map[string]time.Time)
	g.lastIneligibleAt = time.Time{}
	return number, redrawn
}

// Active reports the running game's reward, if any.
func (g *Game) Active() (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rewardID, g.active
}

// Range returns the advertised bounds of the running game.
func (g *Game) Range() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.min, g.max
}

// Evaluate scores one guess. A win closes the game; an exact match by a
// viewer without the watch-time floor does not, it only earns the notice. A
// miss yields a higher/lower hint with probability 0.35, throttled both
// globally and per viewer so the chat cannot binary-search the target for
// free. Values outside the range are ignored.
func (g *Game) Evaluate(nickname string, value int, eligible bool) (Outcome, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return OutcomeNone, 0
	}
	rewardID := g.rewardID
	if value < g.min || value > g.max {
		return OutcomeNone, rewardID
	}
	if value == g.number {
		if !eligible {
			return OutcomeIneligible, rewardID
		}
		g.active = false
		return OutcomeWin, rewardID
	}

	if g.rng.Float64() >= hintProbability {
		return OutcomeNone, rewardID
	}
	now := g.now()
	if now.Sub(g.lastHintAt) < globalHintInterval {
		return OutcomeNone, rewardID
	}
	if last, ok := g.lastUserHintAt[nickname]; ok && now.Sub(last) < userHintInterval {
		return OutcomeNone, rewardID
	}
	g.lastHintAt = now
	g.lastUserHintAt[nickname] = now
	if value < g.number {
		return OutcomeHigher, rewardID
	}
	return OutcomeLower, rewardID
}

// NoteIneligible asks whether the "watch more first" notice may be sent now.
// One notice per ten seconds keeps the bot from flooding the chat.
func (g *Game) NoteIneligible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return false
	}
	now := g.now()
	if now.Sub(g.lastIneligibleAt) < ineligibleInterval {
		return false
	}
	g.lastIneligibleAt = now
	return true
}

// Reset drops the game, win or no win. Used on stream end.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	g.rewardID = 0
}
