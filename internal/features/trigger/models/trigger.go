package models

import "time"

// Type selects the drop flavour a trigger requests.
type Type string

const (
	TypeRandom  Type = "random"
	TypePlanned Type = "planned"
	TypeGuess   Type = "guess"
	TypeClip    Type = "clip"
)

// Trigger is one queued request to run a drop on a channel. Rows are consumed
// in id order, at most once: the dequeue stamps processed_at in the same
// transaction that returns the row.
type Trigger struct {
	ID                int64      `json:"id"`
	RequestedBy       *int64     `json:"requested_by"`
	CreatedAt         time.Time  `json:"created_at"`
	ProcessedAt       *time.Time `json:"processed_at"`
	Type              Type       `json:"trigger_type"`
	ChannelID         int64      `json:"channel_id"`
	RewardID          *int64     `json:"reward_id"`
	WinnersCount      *int       `json:"winners_count"`
	PlannedGiveawayID *int64     `json:"planned_giveaway_id"`
	GuessNumber       *int       `json:"guess_number"`
	GuessMin          *int       `json:"guess_min"`
	GuessMax          *int       `json:"guess_max"`
}
