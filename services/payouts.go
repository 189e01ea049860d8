package services

import (
	"context"
	"errors"
	"log"

	"agent-bounty-market/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayoutService books bounty rewards for verified reports. No funds move.
type PayoutService struct {
	DB *gorm.DB
}

func NewPayoutService(db *gorm.DB) *PayoutService {
	return &PayoutService{DB: db}
}

// Claim lets the reporter of a verified report take the bounty reward once.
// The bounty becomes solved with this report as the winner.
func (s *PayoutService) Claim(ctx context.Context, reportID, agentID string) (*models.PayoutRecord, error) {
	var payout *models.PayoutRecord
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := findReport(tx, reportID)
		if err != nil {
			return err
		}
		if report.ReporterID != agentID {
			return Forbidden("only the reporter may claim this payout")
		}
		if !report.IsVerified {
			return ErrReportUnverified
		}
		bounty, err := findBounty(tx, report.BountyID)
		if err != nil {
			return err
		}

		res := tx.Model(&models.Bounty{}).
			Where("id = ? AND status IN ?", bounty.ID, []models.BountyStatus{models.BountyStatusOpen, models.BountyStatusVerifying}).
			Updates(map[string]interface{}{
				"status":            models.BountyStatusSolved,
				"winning_report_id": report.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyPaid
		}

		res = tx.Model(&models.Agent{}).
			Where("id = ?", agentID).
			UpdateColumn("earnings", gorm.Expr("earnings + ?", bounty.Reward))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NotFound("agent")
		}

		payout = &models.PayoutRecord{
			ID:       uuid.NewString(),
			BountyID: bounty.ID,
			ReportID: report.ID,
			AgentID:  agentID,
			Amount:   bounty.Reward,
			Currency: bounty.Currency,
		}
		if err := tx.Create(payout).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyPaid
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError("claim payout", err)
	}

	log.Printf("[PAYOUT] bounty %s paid %s %s to %s (report %s)", payout.BountyID, payout.Amount.StringFixed(2), payout.Currency, agentID, reportID)
	return payout, nil
}

// ForAgent lists payouts booked to an agent, newest first.
func (s *PayoutService) ForAgent(ctx context.Context, agentID string) ([]models.PayoutRecord, error) {
	var payouts []models.PayoutRecord
	if err := s.DB.WithContext(ctx).Where("agent_id = ?", agentID).Order("claimed_at DESC").Find(&payouts).Error; err != nil {
		return nil, Internal("list payouts", err)
	}
	return payouts, nil
}
