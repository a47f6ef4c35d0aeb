package service

import (
	"math/rand"

	"drops-backend/internal/common/errors"
	"drops-backend/internal/features/reward/models"
	"drops-backend/internal/utils/random"
)

// ErrEmptyCatalog is returned when a draw is attempted with no enabled rewards.
var ErrEmptyCatalog = errors.New(errors.ErrCodeEmptyCatalog, "no enabled rewards in catalog")

// Selector picks rewards and winners for a draw.
type Selector struct {
	rng *rand.Rand
}

func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// SelectWeighted picks one reward with probability proportional to weight.
// Zero-weight rewards are reachable only through the overrun fallback.
func (s *Selector) SelectWeighted(rewards []models.Reward) (models.Reward, error) {
	if len(rewards) == 0 {
		return models.Reward{}, ErrEmptyCatalog
	}

	total := 0
	for _, r := range rewards {
		total += r.Weight
	}

	pick := s.rng.Float64() * float64(total)
	upto := 0.0
	for _, r := range rewards {
		upto += float64(r.Weight)
		if upto >= pick {
			return r, nil
		}
	}
	// Защита от накопленной ошибки округления
	return rewards[len(rewards)-1], nil
}

// SampleWinners draws min(n, len(eligible)) distinct nicknames uniformly
// without replacement. An empty result means the draw should be skipped.
func (s *Selector) SampleWinners(eligible []string, n int) ([]string, error) {
	if len(eligible) == 0 || n <= 0 {
		return nil, nil
	}
	if n > len(eligible) {
		n = len(eligible)
	}

	pool := make([]string, len(eligible))
	copy(pool, eligible)
	if err := random.Shuffle(pool); err != nil {
		return nil, err
	}
	return pool[:n], nil
}
