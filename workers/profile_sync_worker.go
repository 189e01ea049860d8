package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"agent-bounty-market/models"
	"agent-bounty-market/services"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ProfileSource lists remote profiles changed since a point in time.
type ProfileSource interface {
	ChangedProfiles(ctx context.Context, since time.Time) ([]services.RemoteProfile, error)
}

// ProfileSyncWorker refreshes mirrored profile fields of agents that are
// already linked to a remote identity. Unknown remote ids are skipped; those
// agents are created on their first authenticated request instead.
type ProfileSyncWorker struct {
	db       *gorm.DB
	source   ProfileSource
	interval time.Duration

	mu    sync.Mutex
	since time.Time
}

func NewProfileSyncWorker(db *gorm.DB, source ProfileSource, interval time.Duration) *ProfileSyncWorker {
	return &ProfileSyncWorker{db: db, source: source, interval: interval}
}

// Start runs one sync immediately and then every interval until ctx is done.
func (w *ProfileSyncWorker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create profile sync scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.SyncOnce(ctx); err != nil {
				log.Printf("[SYNC] profile sync failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule profile sync: %w", err)
	}

	log.Printf("[SYNC] starting profile sync worker (every %s)", w.interval)
	sched.Start()

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("[SYNC] scheduler shutdown: %v", err)
		}
		log.Println("[SYNC] profile sync worker stopped")
	}()
	return nil
}

// SyncOnce pulls one batch of changes and returns how many local agents were refreshed.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	profiles, err := w.source.ChangedProfiles(ctx, w.since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	var refreshed, failed int
	latest := w.since
	for i := range profiles {
		p := &profiles[i]
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
		n, err := refreshAgent(w.db.WithContext(ctx), p)
		if err != nil {
			failed++
			log.Printf("[SYNC] failed to refresh agent (external_id=%q): %v", p.ID, err)
			continue
		}
		refreshed += n
	}

	// Keep the cursor where it was if anything failed so the batch is retried.
	if failed == 0 {
		w.since = latest
	}
	log.Printf("[SYNC] %d profile(s) received, %d agent(s) refreshed, %d error(s)", len(profiles), refreshed, failed)
	return refreshed, nil
}

// refreshAgent updates the mirrored fields of the agent linked to p. Flags never downgrade.
func refreshAgent(db *gorm.DB, p *services.RemoteProfile) (int, error) {
	if p.ID == "" {
		return 0, nil
	}
	updates := map[string]interface{}{
		"description":    p.Description,
		"avatar_url":     p.AvatarURL,
		"follower_count": p.FollowerCount,
		"karma":          p.Karma,
		"is_claimed":     gorm.Expr("is_claimed OR ?", p.IsClaimed),
		"is_verified":    gorm.Expr("is_verified OR ?", p.IsVerified),
	}
	if p.Name != "" {
		updates["name"] = p.Name
	}
	res := db.Model(&models.Agent{}).Where("external_id = ?", p.ID).Updates(updates)
	return int(res.RowsAffected), res.Error
}
