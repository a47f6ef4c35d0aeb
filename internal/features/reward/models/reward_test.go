package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoldAmount(t *testing.T) {
	tests := []struct {
		name   string
		reward string
		amount int64
		isGold bool
	}{
		{"point reward", "50 GOLD", 50, true},
		{"large point reward", "1000 GOLD", 1000, true},
		{"item reward", "Фирменная кружка", 0, false},
		{"gold not at end", "50 GOLD bonus", 0, false},
		{"lowercase", "50 gold", 0, false},
		{"no amount", "GOLD", 0, false},
		{"zero amount", "0 GOLD", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, ok := Reward{Name: tt.reward}.GoldAmount()
			assert.Equal(t, tt.isGold, ok)
			assert.Equal(t, tt.amount, amount)
		})
	}
}

func TestMatchesChannel(t *testing.T) {
	ch := int64(3)
	assert.True(t, Reward{ChannelID: nil}.MatchesChannel(3))
	assert.True(t, Reward{ChannelID: &ch}.MatchesChannel(3))
	assert.False(t, Reward{ChannelID: &ch}.MatchesChannel(4))
}
