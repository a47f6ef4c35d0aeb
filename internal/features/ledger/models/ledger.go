package models

import "time"

// Source types used as the first half of the idempotency key. A refund is a
// fresh credit under a distinct "<op>_refund" source, never a deletion.
const (
	SourceDraw            = "draw"
	SourceConversion      = "conversion"
	SourceCheckActivation = "check_activation"
	SourceAdmin           = "admin"
)

// RefundSource derives the refund source type for an operation.
func RefundSource(sourceType string) string { return sourceType + "_refund" }

// Entry is one journal row. The journal is append-only; (account_id,
// source_type, source_id) is unique and carries at-most-once crediting.
type Entry struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	Amount     int64     `json:"amount"`
	SourceType string    `json:"source_type"`
	SourceID   int64     `json:"source_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApplyStatus tags the outcome of ApplyDeltaOnce.
type ApplyStatus string

const (
	ApplyApplied      ApplyStatus = "applied"
	ApplyInsufficient ApplyStatus = "insufficient"
	ApplyExists       ApplyStatus = "exists"
	ApplyZero         ApplyStatus = "zero"
)

type ApplyResult struct {
	Status  ApplyStatus `json:"status"`
	Balance int64       `json:"balance"`
}

// ItemStatus is the state of a non-point reward claim.
type ItemStatus string

const (
	ItemAvailable         ItemStatus = "available"
	ItemConversionPending ItemStatus = "conversion_pending"
	ItemConverted         ItemStatus = "converted"
)

type ItemClaim struct {
	ID         int64      `json:"id"`
	DrawID     int64      `json:"draw_id"`
	AccountID  int64      `json:"account_id"`
	Nickname   string     `json:"nickname"`
	RewardName string     `json:"reward_name"`
	Status     ItemStatus `json:"status"`
	ClaimedAt  time.Time  `json:"claimed_at"`
}

// ConversionStatus is the state of an item-to-gold conversion request.
type ConversionStatus string

const (
	ConversionPending  ConversionStatus = "pending"
	ConversionCredited ConversionStatus = "credited"
	ConversionRejected ConversionStatus = "rejected"
)

type ConversionRequest struct {
	ID          int64            `json:"id"`
	AccountID   int64            `json:"account_id"`
	DrawID      int64            `json:"draw_id"`
	RewardName  string           `json:"reward_name"`
	Status      ConversionStatus `json:"status"`
	GoldAmount  *int64           `json:"gold_amount"`
	Reason      *string          `json:"reason"`
	RequestedAt time.Time        `json:"requested_at"`
	DecidedAt   *time.Time       `json:"decided_at"`
	AdminID     *int64           `json:"admin_id"`
}

// ConversionOutcome reports the decision applied to a conversion request.
type ConversionOutcome struct {
	Status    string `json:"status"` // credited, exists, not_pending, not_found
	AccountID int64  `json:"account_id"`
	Amount    int64  `json:"amount"`
}

// CheckStatus is the state of a shareable gold check.
type CheckStatus string

const (
	CheckActive   CheckStatus = "active"
	CheckFinished CheckStatus = "finished"
)

type Check struct {
	ID             int64       `json:"id"`
	Code           string      `json:"code"`
	Amount         int64       `json:"amount"`
	MaxActivations int         `json:"max_activations"`
	ActivatedCount int         `json:"activated_count"`
	Status         CheckStatus `json:"status"`
	CreatedBy      int64       `json:"created_by"`
	ChannelID      *int64      `json:"channel_id"`
}

// CheckActivation reports one activation attempt.
type CheckActivation struct {
	Status         string `json:"status"` // activated, already, finished, inactive, not_found
	CheckID        int64  `json:"check_id"`
	Amount         int64  `json:"amount"`
	ActivatedCount int    `json:"activated_count"`
	MaxActivations int    `json:"max_activations"`
}
