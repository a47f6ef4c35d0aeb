package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drops-backend/internal/features/reward/models"
)

func TestSelectWeighted_EmptyCatalog(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))

	_, err := s.SelectWeighted(nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestSelectWeighted_AlwaysReturnsMember(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(42)))
	rewards := []models.Reward{
		{ID: 1, Name: "sticker", Weight: 3},
		{ID: 2, Name: "50 GOLD", Weight: 1},
		{ID: 3, Name: "mug", Weight: 0},
	}

	ids := map[int64]bool{1: true, 2: true, 3: true}
	for i := 0; i < 1000; i++ {
		r, err := s.SelectWeighted(rewards)
		require.NoError(t, err)
		assert.True(t, ids[r.ID])
	}
}

func TestSelectWeighted_FrequencyConvergesToWeightShare(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(7)))
	rewards := []models.Reward{
		{ID: 1, Weight: 1},
		{ID: 2, Weight: 3},
	}

	const trials = 20000
	counts := map[int64]int{}
	for i := 0; i < trials; i++ {
		r, err := s.SelectWeighted(rewards)
		require.NoError(t, err)
		counts[r.ID]++
	}

	// Ожидаем 25% / 75% с запасом на дисперсию
	assert.InDelta(t, 0.25, float64(counts[1])/trials, 0.03)
	assert.InDelta(t, 0.75, float64(counts[2])/trials, 0.03)
}

func TestSelectWeighted_AllZeroWeights(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	rewards := []models.Reward{{ID: 1, Weight: 0}, {ID: 2, Weight: 0}}

	r, err := s.SelectWeighted(rewards)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.ID)
}

func TestSampleWinners(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))

	t.Run("empty eligible set skips the draw", func(t *testing.T) {
		winners, err := s.SampleWinners(nil, 3)
		require.NoError(t, err)
		assert.Empty(t, winners)
	})

	t.Run("caps at eligible size and returns distinct winners", func(t *testing.T) {
		winners, err := s.SampleWinners([]string{"alice", "bob"}, 5)
		require.NoError(t, err)
		assert.Len(t, winners, 2)
		assert.NotEqual(t, winners[0], winners[1])
	})

	t.Run("winners come from the eligible set", func(t *testing.T) {
		eligible := []string{"a", "b", "c", "d"}
		set := map[string]bool{"a": true, "b": true, "c": true, "d": true}
		winners, err := s.SampleWinners(eligible, 3)
		require.NoError(t, err)
		require.Len(t, winners, 3)
		for _, w := range winners {
			assert.True(t, set[w])
		}
	})
}
