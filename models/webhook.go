package models

import "strings"

const (
	WebhookEventReportSubmitted = "report.submitted"
	WebhookEventReportVerified  = "report.verified"
	WebhookEventJobCompleted    = "job.completed"
	WebhookEventPayoutClaimed   = "payout.claimed"
)

// Webhook is a recorded registration. Delivery is not performed by this service.
type Webhook struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID string `gorm:"type:uuid;index;not null" json:"owner_id"`
	URL     string `gorm:"type:text;not null" json:"url"`
	Events  string `gorm:"type:text;not null" json:"-"` // comma-separated
	Secret  string `gorm:"not null" json:"-"`
	Active  bool   `gorm:"not null;default:true" json:"active"`

	Timestamps
}

func (w *Webhook) EventList() []string {
	if w.Events == "" {
		return nil
	}
	return strings.Split(w.Events, ",")
}
