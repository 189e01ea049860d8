package models

import "github.com/shopspring/decimal"

// BountyStatus is the lifecycle state of a bounty.
type BountyStatus string

const (
	BountyStatusOpen      BountyStatus = "open"
	BountyStatusVerifying BountyStatus = "verifying" // at least one report verified, payout not yet claimed
	BountyStatusSolved    BountyStatus = "solved"
)

func (s BountyStatus) Valid() bool {
	switch s {
	case BountyStatusOpen, BountyStatusVerifying, BountyStatusSolved:
		return true
	}
	return false
}

// Bounty is a scoped invitation to find vulnerabilities, owned by one agent.
type Bounty struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID         string          `gorm:"type:uuid;index;not null" json:"owner_id"`
	Title           string          `gorm:"not null" json:"title"`
	Slug            string          `gorm:"uniqueIndex;not null" json:"slug"`
	Description     string          `gorm:"type:text" json:"description"`
	Scope           string          `gorm:"type:text" json:"scope"`
	Reward          decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"reward"`
	Currency        string          `gorm:"type:varchar(16);not null;default:'USD'" json:"currency"`
	Status          BountyStatus    `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	WinningReportID *string         `gorm:"type:uuid" json:"winning_report_id,omitempty"`

	Timestamps
}
