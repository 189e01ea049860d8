package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutRecord books a claimed bounty reward. No money moves; one row per bounty.
type PayoutRecord struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	BountyID  string          `gorm:"type:uuid;uniqueIndex;not null" json:"bounty_id"`
	ReportID  string          `gorm:"type:uuid;not null" json:"report_id"`
	AgentID   string          `gorm:"type:uuid;index;not null" json:"agent_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency  string          `gorm:"type:varchar(16);not null" json:"currency"`
	ClaimedAt time.Time       `gorm:"autoCreateTime" json:"claimed_at"`
}
