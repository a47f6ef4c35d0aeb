package models

import "time"

// Status is the lifecycle state of a draw. Pending draws wait for the winner
// to show activity inside the claim window; claimed and expired are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
	StatusExpired Status = "expired"
)

type Draw struct {
	ID        int64      `json:"id"`
	Channel   string     `json:"channel"`
	Nickname  string     `json:"nickname"`
	RewardID  int64      `json:"reward_id"`
	CreatedAt time.Time  `json:"created_at"`
	Status    Status     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notified  bool       `json:"notified"`
}

// ClaimedReward is one row claimed by a viewer's chat activity.
type ClaimedReward struct {
	DrawID     int64
	RewardID   int64
	RewardName string
}

// ExpiredDraw is returned by the expiry sweep for notification.
type ExpiredDraw struct {
	DrawID     int64
	Nickname   string
	RewardName string
}

// ClaimSummary is a claimed draw not yet reported to the winner's account.
type ClaimSummary struct {
	DrawID     int64
	Nickname   string
	RewardName string
}

// Stats are per-viewer win statistics for the admin surface.
type Stats struct {
	Wins          int64
	LastWinAt     *time.Time
	LastWinReward string
}
