package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"agent-bounty-market/models"
	"agent-bounty-market/services"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeSource struct {
	batches [][]services.RemoteProfile
	err     error
	since   []time.Time
}

func (f *fakeSource) ChangedProfiles(_ context.Context, since time.Time) ([]services.RemoteProfile, error) {
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	next := f.batches[0]
	f.batches = f.batches[1:]
	return next, nil
}

func newWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:sync_%s?mode=memory&cache=shared", uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSyncOnceRefreshesLinkedAgents(t *testing.T) {
	db := newWorkerDB(t)
	linked, err := services.UpsertRemoteProfile(db, &services.RemoteProfile{ID: "rem-1", Name: "scout", IsVerified: true})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	t1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	bio := "new bio"
	src := &fakeSource{batches: [][]services.RemoteProfile{{
		{ID: "rem-1", Name: "scout-renamed", Description: &bio, Karma: 99, IsVerified: false, UpdatedAt: t1},
		{ID: "rem-unknown", Name: "stranger", UpdatedAt: t1.Add(-time.Hour)},
	}}}
	w := NewProfileSyncWorker(db, src, time.Minute)

	n, err := w.SyncOnce(context.Background())
	if err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("refreshed %d agents, want 1", n)
	}

	var got models.Agent
	db.First(&got, "id = ?", linked.ID)
	if got.Name != "scout-renamed" || got.Karma != 99 || got.Description == nil || *got.Description != bio {
		t.Errorf("agent = %+v", got)
	}
	if !got.IsVerified {
		t.Error("sync downgraded is_verified")
	}

	var count int64
	db.Model(&models.Agent{}).Count(&count)
	if count != 1 {
		t.Errorf("sync created agents for unknown remote ids: %d rows", count)
	}

	if _, err := w.SyncOnce(context.Background()); err != nil {
		t.Fatalf("second SyncOnce: %v", err)
	}
	if !src.since[1].Equal(t1) {
		t.Errorf("cursor = %s, want latest updated_at %s", src.since[1], t1)
	}
}

func TestSyncOnceSurfacesSourceErrors(t *testing.T) {
	db := newWorkerDB(t)
	src := &fakeSource{err: errors.New("identity down")}
	w := NewProfileSyncWorker(db, src, time.Minute)
	if _, err := w.SyncOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !src.since[0].IsZero() {
		t.Errorf("first sync should start from the zero time, got %s", src.since[0])
	}
}
