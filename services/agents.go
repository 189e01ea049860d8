package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"agent-bounty-market/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentService covers local registration and profile management.
type AgentService struct {
	DB *gorm.DB
}

func NewAgentService(db *gorm.DB) *AgentService {
	return &AgentService{DB: db}
}

type RegisterAgentInput struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=1000"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

type UpdateProfileInput struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=64"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

// Registration is returned once; the token is not retrievable afterwards.
type Registration struct {
	Agent *models.Agent `json:"agent"`
	Token string        `json:"token"`
}

// Register creates a local-only agent and issues its credential.
func (s *AgentService) Register(ctx context.Context, in RegisterAgentInput) (*Registration, error) {
	in.Name = cleanLine(in.Name)
	in.Description = cleanProse(in.Description)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	agent := &models.Agent{
		ID:         uuid.NewString(),
		LocalToken: NewLocalToken(),
		Name:       in.Name,
	}
	if in.Description != "" {
		agent.Description = &in.Description
	}
	if in.AvatarURL != "" {
		agent.AvatarURL = &in.AvatarURL
	}
	if err := s.DB.WithContext(ctx).Create(agent).Error; err != nil {
		return nil, Internal("register agent", err)
	}

	log.Printf("[IDENTITY] registered local agent %s (%s)", agent.ID, agent.Name)
	return &Registration{Agent: agent, Token: agent.LocalToken}, nil
}

// UpdateProfile edits the caller's own profile. Agents linked to the remote
// identity service cannot change any mirrored field; the next handshake or
// sync pass would overwrite it.
func (s *AgentService) UpdateProfile(ctx context.Context, agent *models.Agent, in UpdateProfileInput) (*models.Agent, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		n := cleanLine(*in.Name)
		in.Name = &n
		updates["name"] = n
	}
	if in.Description != nil {
		d := cleanProse(*in.Description)
		in.Description = &d
		updates["description"] = d
	}
	if in.AvatarURL != nil {
		u := strings.TrimSpace(*in.AvatarURL)
		in.AvatarURL = &u
		updates["avatar_url"] = u
	}
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	if agent.ExternalID != nil {
		if issues := mirroredFieldIssues(in); len(issues) > 0 {
			return nil, Invalid(issues...)
		}
	}
	if len(updates) == 0 {
		return agent, nil
	}

	db := s.DB.WithContext(ctx)
	if err := db.Model(&models.Agent{}).Where("id = ?", agent.ID).Updates(updates).Error; err != nil {
		return nil, Internal("update profile", err)
	}
	return findAgent(db, agent.ID)
}

func mirroredFieldIssues(in UpdateProfileInput) []FieldIssue {
	var issues []FieldIssue
	readonly := func(field string) {
		issues = append(issues, FieldIssue{Field: field, Rule: "readonly", Message: field + " is managed by the identity service"})
	}
	if in.Name != nil {
		readonly("name")
	}
	if in.Description != nil {
		readonly("description")
	}
	if in.AvatarURL != nil {
		readonly("avatar_url")
	}
	return issues
}

// RotateToken replaces the caller's local token. The old one stops working immediately.
func (s *AgentService) RotateToken(ctx context.Context, agentID string) (string, error) {
	token := NewLocalToken()
	res := s.DB.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", agentID).Update("local_token", token)
	if res.Error != nil {
		return "", Internal("rotate token", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", NotFound("agent")
	}
	log.Printf("[IDENTITY] rotated local token for %s", agentID)
	return token, nil
}

func (s *AgentService) GetPublic(ctx context.Context, id string) (*models.AgentSummary, error) {
	agent, err := findAgent(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	summary := agent.Summary()
	return &summary, nil
}

// Leaderboard ranks agents by reputation; ties go to the earlier account.
func (s *AgentService) Leaderboard(ctx context.Context, limit int) ([]models.AgentSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var agents []models.Agent
	err := s.DB.WithContext(ctx).
		Order("reputation DESC").
		Order("created_at ASC").
		Limit(limit).
		Find(&agents).Error
	if err != nil {
		return nil, Internal("load leaderboard", err)
	}
	out := make([]models.AgentSummary, 0, len(agents))
	for i := range agents {
		out = append(out, agents[i].Summary())
	}
	return out, nil
}

// Search lists agents whose name contains query, case-insensitively.
func (s *AgentService) Search(ctx context.Context, query string, limit int) ([]models.AgentSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.Agent{}).Limit(limit).Order("reputation DESC")
	if query = strings.TrimSpace(query); query != "" {
		db = db.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}

	var agents []models.Agent
	if err := db.Find(&agents).Error; err != nil {
		return nil, Internal("search agents", err)
	}
	out := make([]models.AgentSummary, len(agents))
	for i := range agents {
		out[i] = agents[i].Summary()
	}
	return out, nil
}

func findAgent(db *gorm.DB, id string) (*models.Agent, error) {
	var agent models.Agent
	if err := db.First(&agent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("agent")
		}
		return nil, Internal("load agent", err)
	}
	return &agent, nil
}
