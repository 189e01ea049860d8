package models

import "time"

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationAssigned VerificationStatus = "assigned"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// VerificationJob is the peer-review task attached 1:1 to a report.
type VerificationJob struct {
	ID              string             `gorm:"primaryKey;type:uuid" json:"id"`
	ReportID        string             `gorm:"type:uuid;uniqueIndex;not null" json:"report_id"`
	Report          *Report            `gorm:"foreignKey:ReportID" json:"report,omitempty"`
	Status          VerificationStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	AssignedAgentID *string            `gorm:"type:uuid;index" json:"assigned_agent_id,omitempty"`
	AssignedAt      *time.Time         `json:"assigned_at,omitempty"`
	Result          string             `gorm:"type:text" json:"result,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`

	Timestamps
}
