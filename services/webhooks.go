package services

import (
	"context"
	"log"
	"sort"
	"strings"

	"agent-bounty-market/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookService stores webhook registrations. Nothing is delivered.
type WebhookService struct {
	DB *gorm.DB
}

func NewWebhookService(db *gorm.DB) *WebhookService {
	return &WebhookService{DB: db}
}

type CreateWebhookInput struct {
	URL    string   `json:"url" validate:"required,http_url,max=2048"`
	Events []string `json:"events" validate:"required,min=1,max=4,dive,oneof=report.submitted report.verified job.completed payout.claimed"`
}

// WebhookView is the listing shape; the secret is only shown on creation.
type WebhookView struct {
	*models.Webhook
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

func (s *WebhookService) Create(ctx context.Context, ownerID string, in CreateWebhookInput) (*WebhookView, error) {
	in.URL = strings.TrimSpace(in.URL)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	events := dedupe(in.Events)
	hook := &models.Webhook{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		URL:     in.URL,
		Events:  strings.Join(events, ","),
		Secret:  "whsec_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Active:  true,
	}
	if err := s.DB.WithContext(ctx).Create(hook).Error; err != nil {
		return nil, Internal("create webhook", err)
	}
	log.Printf("[WEBHOOK] %s registered by %s for %s", hook.ID, ownerID, hook.Events)
	return &WebhookView{Webhook: hook, Events: events, Secret: hook.Secret}, nil
}

func (s *WebhookService) List(ctx context.Context, ownerID string) ([]WebhookView, error) {
	var hooks []models.Webhook
	if err := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&hooks).Error; err != nil {
		return nil, Internal("list webhooks", err)
	}
	out := make([]WebhookView, 0, len(hooks))
	for i := range hooks {
		out = append(out, WebhookView{Webhook: &hooks[i], Events: hooks[i].EventList()})
	}
	return out, nil
}

// Delete removes one of the owner's registrations. Another owner's id reads as not found.
func (s *WebhookService) Delete(ctx context.Context, id, ownerID string) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Webhook{})
	if res.Error != nil {
		return Internal("delete webhook", res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFound("webhook")
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
