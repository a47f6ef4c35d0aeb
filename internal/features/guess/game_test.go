package guess

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGame(seed int64) (*Game, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
	return New(rand.New(rand.NewSource(seed)), clock.now), clock
}

func TestStartNormalizesRange(t *testing.T) {
	g, _ := newTestGame(1)

	// Вырожденный диапазон заменяется на [1,100].
	number, redrawn := g.Start(5, 500, 10, 10)
	assert.True(t, redrawn)
	assert.GreaterOrEqual(t, number, 1)
	assert.LessOrEqual(t, number, 100)
	min, max := g.Range()
	assert.Equal(t, 1, min)
	assert.Equal(t, 100, max)

	// Число вне диапазона перевыбирается внутри него.
	number, redrawn = g.Start(5, 999, 1, 50)
	assert.True(t, redrawn)
	assert.GreaterOrEqual(t, number, 1)
	assert.LessOrEqual(t, number, 50)

	number, redrawn = g.Start(5, 25, 1, 50)
	assert.False(t, redrawn)
	assert.Equal(t, 25, number)
}

func TestWinClosesGame(t *testing.T) {
	g, _ := newTestGame(1)
	g.Start(7, 42, 1, 100)

	outcome, rewardID := g.Evaluate("alice", 42, true)
	assert.Equal(t, OutcomeWin, outcome)
	assert.Equal(t, int64(7), rewardID)

	_, active := g.Active()
	assert.False(t, active)

	// После победы игра мертва, угадывания не засчитываются.
	outcome, _ = g.Evaluate("bob", 42, true)
	assert.Equal(t, OutcomeNone, outcome)
}

func TestIneligibleExactMatchKeepsGameOpen(t *testing.T) {
	g, _ := newTestGame(1)
	g.Start(7, 42, 1, 100)

	outcome, rewardID := g.Evaluate("bob", 42, false)
	assert.Equal(t, OutcomeIneligible, outcome)
	assert.Equal(t, int64(7), rewardID)

	// Число не раскрыто, следующий подходящий зритель может выиграть.
	_, active := g.Active()
	require.True(t, active)
	outcome, _ = g.Evaluate("alice", 42, true)
	assert.Equal(t, OutcomeWin, outcome)
}

func TestOutOfRangeValueIsIgnored(t *testing.T) {
	g, clock := newTestGame(1)
	g.Start(7, 42, 1, 100)

	// Вне диапазона — ни победы, ни подсказки, сколько ни повторяй.
	for i := 0; i < 200; i++ {
		clock.advance(userHintInterval)
		outcome, _ := g.Evaluate("alice", 5000, true)
		assert.Equal(t, OutcomeNone, outcome)
	}
	_, active := g.Active()
	assert.True(t, active)
}

func TestHintDirection(t *testing.T) {
	g, clock := newTestGame(1)
	g.Start(7, 42, 1, 100)

	// Собираем подсказки, пока вероятность не сработает.
	hintFor := func(nickname string, value int) Outcome {
		for i := 0; i < 200; i++ {
			clock.advance(userHintInterval)
			if outcome, _ := g.Evaluate(nickname, value, true); outcome != OutcomeNone {
				return outcome
			}
		}
		return OutcomeNone
	}

	assert.Equal(t, OutcomeHigher, hintFor("alice", 10))
	assert.Equal(t, OutcomeLower, hintFor("bob", 90))
}

func TestHintRateLimits(t *testing.T) {
	g, clock := newTestGame(1)
	g.Start(7, 42, 1, 100)

	// Выбиваем первую подсказку.
	got := false
	for i := 0; i < 200 && !got; i++ {
		clock.advance(userHintInterval)
		outcome, _ := g.Evaluate("alice", 10, true)
		got = outcome != OutcomeNone
	}
	require.True(t, got)

	// Глобальное окно: сразу после подсказки молчим для всех.
	clock.advance(time.Second)
	for i := 0; i < 50; i++ {
		outcome, _ := g.Evaluate("bob", 10, true)
		assert.Equal(t, OutcomeNone, outcome)
	}

	// Персональное окно длиннее глобального: alice молчит все 12 секунд.
	clock.advance(5 * time.Second)
	for i := 0; i < 50; i++ {
		outcome, _ := g.Evaluate("alice", 10, true)
		assert.Equal(t, OutcomeNone, outcome)
	}
}

func TestNoteIneligible(t *testing.T) {
	g, clock := newTestGame(1)

	// Без игры уведомление не шлётся.
	assert.False(t, g.NoteIneligible())

	g.Start(7, 42, 1, 100)
	assert.True(t, g.NoteIneligible())
	assert.False(t, g.NoteIneligible())

	clock.advance(ineligibleInterval)
	assert.True(t, g.NoteIneligible())

	// Игра при этом остаётся активной.
	_, active := g.Active()
	assert.True(t, active)
}

func TestReset(t *testing.T) {
	g, _ := newTestGame(1)
	g.Start(7, 42, 1, 100)
	g.Reset()

	_, active := g.Active()
	assert.False(t, active)
	outcome, _ := g.Evaluate("alice", 42, true)
	assert.Equal(t, OutcomeNone, outcome)
}
