package models

import (
	"regexp"
	"strconv"
)

// Reward is one entry of a channel's drop catalog.
type Reward struct {
	ID          int64  `json:"id"`
	ChannelID   *int64 `json:"channel_id"` // nil = не привязана к каналу
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
	Quantity    int    `json:"quantity"`
	Enabled     bool   `json:"enabled"`
}

var goldNameRe = regexp.MustCompile(`^(\d+) GOLD$`)

// GoldAmount parses the point-reward name pattern "<integer> GOLD".
// The second return is false for item rewards.
func (r Reward) GoldAmount() (int64, bool) {
	m := goldNameRe.FindStringSubmatch(r.Name)
	if m == nil {
		return 0, false
	}
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// MatchesChannel reports whether the reward may be used on the channel.
// A nil channel_id matches any channel; the original data treats such rows
// as global rewards (possibly a migration artifact, behavior preserved).
func (r Reward) MatchesChannel(channelID int64) bool {
	return r.ChannelID == nil || *r.ChannelID == channelID
}
