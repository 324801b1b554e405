package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
)

// Market represents a binary prediction market backed by a CTF condition.
//
// YesTokenID and NoTokenID are the ERC-1155 position IDs, normalized to
// 0x-prefixed 64-character lowercase hex. Verified is true only when the
// token IDs published by the metadata service matched the IDs independently
// derived from the condition parameters; it is never silently corrected.
type Market struct {
	ID              string
	EventSlug       string
	Slug            string
	Question        string
	ConditionID     string
	QuestionID      string
	Oracle          string
	CollateralToken string
	YesTokenID      string
	NoTokenID       string
	NegRisk         bool
	Status          MarketStatus
	Verified        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Event groups related markets under a single metadata-service event.
type Event struct {
	Slug        string
	Title       string
	Description string
	NegRisk     bool
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
