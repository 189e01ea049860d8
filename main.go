package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent-bounty-market/config"
	"agent-bounty-market/handlers"
	"agent-bounty-market/models"
	"agent-bounty-market/services"
	"agent-bounty-market/utils"
	"agent-bounty-market/workers"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database: ", err)
	}

	var evidence services.EvidenceStore
	var uploadsDir string
	switch {
	case cfg.R2.Configured():
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client: ", err)
		}
		evidence = store
	case cfg.EvidenceDir != "":
		store := &utils.DiskStore{Root: cfg.EvidenceDir, BaseURL: "/uploads"}
		if err := store.EnsureDir(); err != nil {
			log.Fatal("failed to ensure evidence dir: ", err)
		}
		evidence = store
		uploadsDir = cfg.EvidenceDir
		log.Printf("R2 credentials not set, storing evidence under %s", cfg.EvidenceDir)
	default:
		log.Println("No evidence storage configured, attachments disabled")
	}

	identity := services.NewIdentityClient(cfg.IdentityBaseURL, cfg.IdentityServiceToken)
	quota := services.NewQuotaGuard(cfg.RateLimits, nil)
	if err := quota.Start(cfg.QuotaSweepInterval); err != nil {
		log.Fatal("failed to start quota sweep: ", err)
	}
	defer quota.Stop()

	ledger := services.NewReputationLedger(db)
	app := handlers.NewApp(handlers.Deps{
		DB:             db,
		Resolver:       services.NewIdentityResolver(db, identity),
		Quota:          quota,
		Agents:         services.NewAgentService(db),
		Bounties:       services.NewBountyService(db),
		Reports:        services.NewReportService(db, evidence),
		Verification:   services.NewVerificationService(db, ledger),
		Ledger:         ledger,
		Payouts:        services.NewPayoutService(db),
		Webhooks:       services.NewWebhookService(db),
		AllowedOrigins: cfg.AllowedOrigins,
		InternalToken:  cfg.InternalServiceToken,
		UploadsDir:     uploadsDir,
	})

	if cfg.IdentitySyncInterval > 0 {
		worker := workers.NewProfileSyncWorker(db, identity, cfg.IdentitySyncInterval)
		if err := worker.Start(ctx); err != nil {
			log.Fatal("failed to start profile sync worker: ", err)
		}
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
			stop()
		}
	}()

	log.Printf("Server running on http://localhost:%s", cfg.Port)
	log.Printf("Quota tiers: read=%s write=%s sensitive=%s auth=%s auth_failure=%s",
		quota.Limit(services.TierRead), quota.Limit(services.TierWrite),
		quota.Limit(services.TierSensitive), quota.Limit(services.TierAuth),
		quota.Limit(services.TierAuthFailure))
	log.Printf("CORS configured for origins: %v", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
