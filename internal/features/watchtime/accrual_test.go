package watchtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccrual(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	maxGap := 300 * time.Second

	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want time.Duration
	}{
		{"within gap", base, base.Add(200 * time.Second), 200 * time.Second},
		{"clamped to gap", base, base.Add(500 * time.Second), 300 * time.Second},
		{"exactly the gap", base, base.Add(300 * time.Second), 300 * time.Second},
		{"first sighting", time.Time{}, base, 0},
		{"same instant", base, base, 0},
		{"clock went backwards", base, base.Add(-time.Minute), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accrual(tt.last, tt.now, maxGap))
		})
	}
}
