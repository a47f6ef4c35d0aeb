package models

import "time"

type Channel struct {
	ID             int64     `json:"id"`
	Login          string    `json:"login"`
	OwnerAccountID *int64    `json:"owner_account_id"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
}

// Settings are per-channel overrides; nil fields fall back to the global
// configuration values.
type Settings struct {
	ChannelID            int64 `json:"channel_id"`
	MinIntervalMinutes   *int  `json:"min_interval_minutes"`
	MaxIntervalMinutes   *int  `json:"max_interval_minutes"`
	ActiveTimeoutMinutes *int  `json:"active_timeout_minutes"`
	ClaimTimeoutMinutes  *int  `json:"claim_timeout_minutes"`
	DropsEnabled         bool  `json:"drops_enabled"`
}
