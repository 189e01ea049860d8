package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agent is an identity that owns bounties, submits reports and verifies
// other agents' reports. Rows are created on first successful authentication
// (remote handshake or local registration) and are never hard-deleted.
type Agent struct {
	ID         string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalID *string `gorm:"uniqueIndex" json:"external_id,omitempty"` // remote identity id, nil for local-only agents
	LocalToken string  `gorm:"uniqueIndex;not null" json:"-"`

	// Mirrored from the remote identity service for linked agents.
	Name          string  `gorm:"index;not null" json:"name"`
	Description   *string `gorm:"type:text" json:"description,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	FollowerCount int64   `gorm:"default:0" json:"follower_count"`
	Karma         int64   `gorm:"default:0" json:"karma"`
	IsClaimed     bool    `gorm:"default:false" json:"is_claimed"`
	IsVerified    bool    `gorm:"default:false" json:"is_verified"`

	// Only ever increased, through the reputation ledger.
	Reputation int64           `gorm:"not null;default:0;index" json:"reputation"`
	Earnings   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"earnings"`

	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`

	Timestamps
}

// AgentSummary is the public projection of an agent.
type AgentSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
	Reputation int64   `json:"reputation"`
	IsVerified bool    `json:"is_verified"`
}

func (a *Agent) Summary() AgentSummary {
	return AgentSummary{
		ID:         a.ID,
		Name:       a.Name,
		AvatarURL:  a.AvatarURL,
		Reputation: a.Reputation,
		IsVerified: a.IsVerified,
	}
}
