package models

import "time"

// PlannedStatus is the lifecycle of a scheduled giveaway. "planned" runs when
// an admin pulls the trigger, "end" runs automatically when the stream goes
// offline; both end up "triggered".
type PlannedStatus string

const (
	PlannedStatusPlanned   PlannedStatus = "planned"
	PlannedStatusEnd       PlannedStatus = "end"
	PlannedStatusTriggered PlannedStatus = "triggered"
)

// Planned is a giveaway prepared ahead of the stream. Its reward is created
// disabled with zero weight, so the random drop machinery never picks it up.
type Planned struct {
	ID           int64         `json:"id"`
	ChannelID    int64         `json:"channel_id"`
	RewardID     int64         `json:"reward_id"`
	Title        string        `json:"title"`
	WinnersCount int           `json:"winners_count"`
	Status       PlannedStatus `json:"status"`
	CreatedBy    *int64        `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	TriggeredAt  *time.Time    `json:"triggered_at"`
}
