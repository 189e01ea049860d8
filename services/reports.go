package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"agent-bounty-market/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxAttachmentSize bounds a single evidence upload.
const MaxAttachmentSize = 10 << 20

// EvidenceStore persists report evidence files and returns their public URL.
type EvidenceStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// ReportService handles report submission and read access.
type ReportService struct {
	DB       *gorm.DB
	Evidence EvidenceStore // nil disables attachments
}

func NewReportService(db *gorm.DB, evidence EvidenceStore) *ReportService {
	return &ReportService{DB: db, Evidence: evidence}
}

// SubmitReportInput is the report submission schema.
type SubmitReportInput struct {
	BountyID    string `json:"bounty_id" validate:"required,uuid"`
	VulnType    string `json:"vuln_type" validate:"required,oneof=xss sqli rce ssrf idor auth_bypass csrf info_disclosure prompt_injection business_logic other"`
	Title       string `json:"title" validate:"required,min=5,max=200"`
	Description string `json:"description" validate:"required,min=50,max=10000"`
	PoC         string `json:"poc" validate:"required,min=10,max=5000"`
	Severity    int    `json:"severity" validate:"required,min=1,max=10"`
}

func (in *SubmitReportInput) normalize() {
	in.BountyID = strings.TrimSpace(in.BountyID)
	in.VulnType = strings.ToLower(strings.TrimSpace(in.VulnType))
	in.Title = cleanLine(in.Title)
	in.Description = cleanText(in.Description)
	in.PoC = cleanText(in.PoC)
}

// ReportDetail bundles a report with its job and evidence.
type ReportDetail struct {
	Report      *models.Report            `json:"report"`
	Job         *models.VerificationJob   `json:"job"`
	Attachments []models.ReportAttachment `json:"attachments"`
}

// Submit creates a report and its pending verification job in one transaction.
func (s *ReportService) Submit(ctx context.Context, reporterID string, in SubmitReportInput) (*models.Report, *models.VerificationJob, error) {
	in.normalize()
	if err := ValidateStruct(in); err != nil {
		return nil, nil, err
	}

	db := s.DB.WithContext(ctx)
	bounty, err := findBounty(db, in.BountyID)
	if err != nil {
		return nil, nil, err
	}
	if bounty.OwnerID == reporterID {
		return nil, nil, ErrOwnBounty
	}
	if bounty.Status != models.BountyStatusOpen {
		return nil, nil, ErrBountyClosed
	}

	var existing int64
	if err := db.Model(&models.Report{}).
		Where("bounty_id = ? AND reporter_id = ?", bounty.ID, reporterID).
		Count(&existing).Error; err != nil {
		return nil, nil, Internal("check duplicate report", err)
	}
	if existing > 0 {
		return nil, nil, ErrDuplicateReport
	}

	report := &models.Report{
		ID:          uuid.NewString(),
		BountyID:    bounty.ID,
		ReporterID:  reporterID,
		VulnType:    models.VulnType(in.VulnType),
		Title:       in.Title,
		Description: in.Description,
		PoC:         in.PoC,
		Severity:    in.Severity,
	}
	job := &models.VerificationJob{
		ID:       uuid.NewString(),
		ReportID: report.ID,
		Status:   models.VerificationPending,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// The bounty may have been closed since the first read.
		var open int64
		if err := tx.Model(&models.Bounty{}).
			Where("id = ? AND status = ?", bounty.ID, models.BountyStatusOpen).
			Count(&open).Error; err != nil {
			return err
		}
		if open == 0 {
			return ErrBountyClosed
		}
		if err := tx.Create(report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReport
			}
			return err
		}
		return tx.Create(job).Error
	})
	if err != nil {
		return nil, nil, asServiceError("submit report", err)
	}

	log.Printf("[REPORT] report %s submitted by %s against bounty %s (job %s)", report.ID, reporterID, bounty.ID, job.ID)
	return report, job, nil
}

// Get returns a report to its reporter, the bounty owner or the assigned verifier.
func (s *ReportService) Get(ctx context.Context, reportID, viewerID string) (*ReportDetail, error) {
	db := s.DB.WithContext(ctx)
	report, err := findReport(db, reportID)
	if err != nil {
		return nil, err
	}

	var job models.VerificationJob
	if err := db.First(&job, "report_id = ?", report.ID).Error; err != nil {
		return nil, Internal("load verification job", err)
	}

	allowed := report.ReporterID == viewerID || (job.AssignedAgentID != nil && *job.AssignedAgentID == viewerID)
	if !allowed {
		bounty, err := findBounty(db, report.BountyID)
		if err != nil {
			return nil, err
		}
		allowed = bounty.OwnerID == viewerID
	}
	if !allowed {
		return nil, Forbidden("not allowed to view this report")
	}

	var attachments []models.ReportAttachment
	if err := db.Where("report_id = ?", report.ID).Order("created_at ASC").Find(&attachments).Error; err != nil {
		return nil, Internal("load attachments", err)
	}
	return &ReportDetail{Report: report, Job: &job, Attachments: attachments}, nil
}

// ListMine returns the reporter's own reports, newest first.
func (s *ReportService) ListMine(ctx context.Context, reporterID string, page, size int) ([]models.Report, error) {
	page, size = normalizePage(page, size)
	var reports []models.Report
	err := s.DB.WithContext(ctx).
		Where("reporter_id = ?", reporterID).
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&reports).Error
	if err != nil {
		return nil, Internal("list reports", err)
	}
	return reports, nil
}

// ListForBounty returns every report against a bounty. Owner only.
func (s *ReportService) ListForBounty(ctx context.Context, bountyRef, viewerID string) ([]models.Report, error) {
	db := s.DB.WithContext(ctx)
	bounty, err := findBounty(db, bountyRef)
	if err != nil {
		return nil, err
	}
	if bounty.OwnerID != viewerID {
		return nil, ErrNotOwner
	}
	var reports []models.Report
	if err := db.Where("bounty_id = ?", bounty.ID).Order("created_at ASC").Find(&reports).Error; err != nil {
		return nil, Internal("list bounty reports", err)
	}
	return reports, nil
}

// AddAttachment uploads an evidence file for a report. Reporter only.
func (s *ReportService) AddAttachment(ctx context.Context, reportID, uploaderID, filename, contentType string, size int64, body io.Reader) (*models.ReportAttachment, error) {
	if s.Evidence == nil {
		return nil, &Error{Kind: KindUpstream, Message: "evidence storage is not configured"}
	}
	if size <= 0 || size > MaxAttachmentSize {
		return nil, Invalid(FieldIssue{
			Field:   "file",
			Rule:    "max",
			Message: fmt.Sprintf("file must be between 1 byte and %d bytes", MaxAttachmentSize),
		})
	}

	db := s.DB.WithContext(ctx)
	report, err := findReport(db, reportID)
	if err != nil {
		return nil, err
	}
	if report.ReporterID != uploaderID {
		return nil, Forbidden("only the reporter may attach evidence")
	}

	key := fmt.Sprintf("evidence/%s/%s%s", report.ID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	url, err := s.Evidence.Put(ctx, key, body, size, contentType)
	if err != nil {
		log.Printf("[REPORT] evidence upload failed for report %s: %v", report.ID, err)
		return nil, &Error{Kind: KindUpstream, Message: "evidence upload failed", Err: err}
	}

	attachment := &models.ReportAttachment{
		ID:          uuid.NewString(),
		ReportID:    report.ID,
		UploaderID:  uploaderID,
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Size:        size,
	}
	if err := db.Create(attachment).Error; err != nil {
		return nil, Internal("save attachment", err)
	}
	return attachment, nil
}

func findReport(db *gorm.DB, id string) (*models.Report, error) {
	var report models.Report
	if err := db.First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("report")
		}
		return nil, Internal("load report", err)
	}
	return &report, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
