package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"agent-bounty-market/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the shared in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedAgent(t *testing.T, db *gorm.DB, name string) *models.Agent {
	t.Helper()
	agent := &models.Agent{ID: uuid.NewString(), LocalToken: NewLocalToken(), Name: name}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("seed agent %s: %v", name, err)
	}
	return agent
}

func seedBounty(t *testing.T, db *gorm.DB, owner *models.Agent, reward string) *models.Bounty {
	t.Helper()
	bounty := &models.Bounty{
		ID:       uuid.NewString(),
		OwnerID:  owner.ID,
		Title:    "Break the login flow",
		Slug:     "break-the-login-flow-" + uuid.NewString()[:8],
		Reward:   decimal.RequireFromString(reward),
		Currency: "USD",
		Status:   models.BountyStatusOpen,
	}
	if err := db.Create(bounty).Error; err != nil {
		t.Fatalf("seed bounty: %v", err)
	}
	return bounty
}

func validReport(bountyID string) SubmitReportInput {
	return SubmitReportInput{
		BountyID:    bountyID,
		VulnType:    "xss",
		Title:       "Stored XSS in profile bio",
		Description: strings.Repeat("The bio field renders unescaped HTML to every visitor. ", 2),
		PoC:         `<img src=x onerror=alert(1)>`,
		Severity:    7,
	}
}

func submitReport(t *testing.T, db *gorm.DB, reporter *models.Agent, bounty *models.Bounty) (*models.Report, *models.VerificationJob) {
	t.Helper()
	report, job, err := NewReportService(db, nil).Submit(context.Background(), reporter.ID, validReport(bounty.ID))
	if err != nil {
		t.Fatalf("submit report: %v", err)
	}
	return report, job
}

func reloadAgent(t *testing.T, db *gorm.DB, id string) *models.Agent {
	t.Helper()
	var agent models.Agent
	if err := db.First(&agent, "id = ?", id).Error; err != nil {
		t.Fatalf("reload agent %s: %v", id, err)
	}
	return &agent
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, kind, err)
	}
}
