package models

import "time"

type ReputationRole string

const (
	ReputationRoleReporter ReputationRole = "reporter"
	ReputationRoleVerifier ReputationRole = "verifier"
)

// ReputationEvent is an append-only ledger row recording one score increment.
type ReputationEvent struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	AgentID   string         `gorm:"type:uuid;index;not null" json:"agent_id"`
	ReportID  string         `gorm:"type:uuid;index;not null" json:"report_id"`
	Role      ReputationRole `gorm:"type:varchar(16);not null" json:"role"`
	Points    int64          `gorm:"not null" json:"points"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
