package services

import (
	"context"
	"errors"
	"log"
	"time"

	"agent-bounty-market/models"

	"gorm.io/gorm"
)

// VerificationService is the only writer of verification job state and of the
// report's is_verified / verified_by fields. Every transition is a conditional
// update; the number of affected rows decides the winner.
type VerificationService struct {
	DB     *gorm.DB
	Ledger *ReputationLedger
}

func NewVerificationService(db *gorm.DB, ledger *ReputationLedger) *VerificationService {
	return &VerificationService{DB: db, Ledger: ledger}
}

// CompletionResult is returned by CompleteJob.
type CompletionResult struct {
	Job           *models.VerificationJob `json:"job"`
	Report        *models.Report          `json:"report"`
	ReporterAward int64                   `json:"reporter_award"`
	VerifierAward int64                   `json:"verifier_award"`
}

// ListAvailableJobs returns pending jobs the agent may claim: never jobs for its own reports.
func (s *VerificationService) ListAvailableJobs(ctx context.Context, agentID string, limit int) ([]models.VerificationJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var jobs []models.VerificationJob
	err := s.DB.WithContext(ctx).
		Select("verification_jobs.*").
		Preload("Report").
		Joins("JOIN reports ON reports.id = verification_jobs.report_id").
		Where("verification_jobs.status = ? AND reports.reporter_id <> ?", models.VerificationPending, agentID).
		Order("verification_jobs.created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, Internal("list available jobs", err)
	}
	return jobs, nil
}

// ListAssignedJobs returns the jobs currently assigned to the agent.
func (s *VerificationService) ListAssignedJobs(ctx context.Context, agentID string) ([]models.VerificationJob, error) {
	var jobs []models.VerificationJob
	err := s.DB.WithContext(ctx).
		Preload("Report").
		Where("assigned_agent_id = ? AND status = ?", agentID, models.VerificationAssigned).
		Order("assigned_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, Internal("list assigned jobs", err)
	}
	return jobs, nil
}

// ClaimJob moves a pending job to assigned for agentID. Of two concurrent
// claims exactly one succeeds; the other gets ErrJobUnavailable.
func (s *VerificationService) ClaimJob(ctx context.Context, jobID, agentID string) (*models.VerificationJob, error) {
	db := s.DB.WithContext(ctx)

	job, report, err := loadJobAndReport(db, jobID)
	if err != nil {
		return nil, err
	}
	if report.ReporterID == agentID {
		return nil, ErrSelfVerification
	}

	now := time.Now().UTC()
	res := db.Model(&models.VerificationJob{}).
		Where("id = ? AND status = ?", job.ID, models.VerificationPending).
		Updates(map[string]interface{}{
			"status":            models.VerificationAssigned,
			"assigned_agent_id": agentID,
			"assigned_at":       now,
		})
	if res.Error != nil {
		return nil, Internal("claim job", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrJobUnavailable
	}

	var claimed models.VerificationJob
	if err := db.Preload("Report").First(&claimed, "id = ?", job.ID).Error; err != nil {
		return nil, Internal("reload claimed job", err)
	}
	log.Printf("[VERIFY] job %s claimed by %s (report %s)", job.ID, agentID, report.ID)
	return &claimed, nil
}

// CompleteJob records the assigned agent's verdict. A valid verdict marks the
// report verified and credits reporter and verifier; an invalid one only
// closes the job. Completion is terminal.
func (s *VerificationService) CompleteJob(ctx context.Context, jobID, agentID string, isValid bool, notes string) (*CompletionResult, error) {
	notes = cleanText(notes)
	if len([]rune(notes)) > 5000 {
		return nil, Invalid(FieldIssue{Field: "notes", Rule: "max", Message: "notes must be at most 5000 characters"})
	}

	result := &CompletionResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, report, err := loadJobAndReport(tx, jobID)
		if err != nil {
			return err
		}
		if report.ReporterID == agentID {
			return ErrSelfVerification
		}
		if job.AssignedAgentID == nil || *job.AssignedAgentID != agentID {
			return ErrNotAssignee
		}

		status := models.VerificationRejected
		if isValid {
			status = models.VerificationVerified
		}
		now := time.Now().UTC()
		res := tx.Model(&models.VerificationJob{}).
			Where("id = ? AND assigned_agent_id = ? AND status = ?", job.ID, agentID, models.VerificationAssigned).
			Updates(map[string]interface{}{
				"status":       status,
				"result":       notes,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJobCompleted
		}

		if isValid {
			if err := s.settleVerified(tx, report, agentID); err != nil {
				return err
			}
			result.ReporterAward = ReporterAward
			result.VerifierAward = VerifierAward
		}

		var done models.VerificationJob
		if err := tx.First(&done, "id = ?", job.ID).Error; err != nil {
			return err
		}
		var updated models.Report
		if err := tx.First(&updated, "id = ?", report.ID).Error; err != nil {
			return err
		}
		result.Job = &done
		result.Report = &updated
		return nil
	})
	if err != nil {
		return nil, asServiceError("complete job", err)
	}

	log.Printf("[VERIFY] job %s completed by %s: %s (report %s)", jobID, agentID, result.Job.Status, result.Report.ID)
	return result, nil
}

// settleVerified flips the report to verified and applies the awards. Runs inside the completion tx.
func (s *VerificationService) settleVerified(tx *gorm.DB, report *models.Report, verifierID string) error {
	res := tx.Model(&models.Report{}).
		Where("id = ? AND is_verified = ? AND reporter_id <> ?", report.ID, false, verifierID).
		Updates(map[string]interface{}{
			"is_verified": true,
			"verified_by": verifierID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflict("report is already verified")
	}

	if err := s.Ledger.Credit(tx, report.ReporterID, report.ID, models.ReputationRoleReporter, ReporterAward); err != nil {
		return err
	}
	if err := s.Ledger.Credit(tx, verifierID, report.ID, models.ReputationRoleVerifier, VerifierAward); err != nil {
		return err
	}

	// First verified report moves an open bounty to verifying; later ones leave it as is.
	return tx.Model(&models.Bounty{}).
		Where("id = ? AND status = ?", report.BountyID, models.BountyStatusOpen).
		Update("status", models.BountyStatusVerifying).Error
}

func loadJobAndReport(db *gorm.DB, jobID string) (*models.VerificationJob, *models.Report, error) {
	var job models.VerificationJob
	if err := db.First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NotFound("verification job")
		}
		return nil, nil, Internal("load verification job", err)
	}
	var report models.Report
	if err := db.First(&report, "id = ?", job.ReportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, NotFound("report")
		}
		return nil, nil, Internal("load report", err)
	}
	return &job, &report, nil
}

// asServiceError keeps typed errors and wraps everything else as internal.
func asServiceError(action string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return Internal(action, err)
}
