package models

import "time"

// Link ties an external account to a chat nickname. Until the viewer confirms
// the verification code from chat, Nickname stays empty and rewards queue up
// unsettled.
type Link struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Nickname  string    `json:"nickname"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}
