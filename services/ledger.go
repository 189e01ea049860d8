package services

import (
	"context"
	"fmt"

	"agent-bounty-market/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fixed awards applied when a verification job completes as verified.
const (
	ReporterAward int64 = 10
	VerifierAward int64 = 5
)

// ReputationLedger applies score increments and records each one.
// Increments are relative updates so concurrent writers never lose one.
type ReputationLedger struct {
	DB *gorm.DB
}

func NewReputationLedger(db *gorm.DB) *ReputationLedger {
	return &ReputationLedger{DB: db}
}

// Credit adds points to an agent inside tx and appends a ReputationEvent.
func (l *ReputationLedger) Credit(tx *gorm.DB, agentID, reportID string, role models.ReputationRole, points int64) error {
	if points <= 0 {
		return fmt.Errorf("reputation credit must be positive, got %d", points)
	}

	res := tx.Model(&models.Agent{}).
		Where("id = ?", agentID).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", points))
	if res.Error != nil {
		return fmt.Errorf("credit reputation for %s: %w", agentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFound("agent")
	}

	event := models.ReputationEvent{
		ID:       uuid.NewString(),
		AgentID:  agentID,
		ReportID: reportID,
		Role:     role,
		Points:   points,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("record reputation event for %s: %w", agentID, err)
	}
	return nil
}

// History returns an agent's ledger rows, newest first.
func (l *ReputationLedger) History(ctx context.Context, agentID string, limit int) ([]models.ReputationEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.ReputationEvent
	err := l.DB.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, Internal("load reputation history", err)
	}
	return events, nil
}
