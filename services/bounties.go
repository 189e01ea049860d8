package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"agent-bounty-market/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BountyService struct {
	DB *gorm.DB
}

func NewBountyService(db *gorm.DB) *BountyService {
	return &BountyService{DB: db}
}

type CreateBountyInput struct {
	Title       string          `json:"title" validate:"required,min=5,max=200"`
	Description string          `json:"description" validate:"max=20000"`
	Scope       string          `json:"scope" validate:"max=5000"`
	Reward      decimal.Decimal `json:"reward"`
	Currency    string          `json:"currency" validate:"omitempty,iso4217"`
}

type UpdateBountyInput struct {
	Title       *string          `json:"title" validate:"omitempty,min=5,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=20000"`
	Scope       *string          `json:"scope" validate:"omitempty,max=5000"`
	Reward      *decimal.Decimal `json:"reward"`
}

// BountyFilter narrows List. Zero values mean no filter and the first page.
type BountyFilter struct {
	Status  models.BountyStatus
	OwnerID string
	Page    int
	Size    int
}

func (s *BountyService) Create(ctx context.Context, ownerID string, in CreateBountyInput) (*models.Bounty, error) {
	in.Title = cleanLine(in.Title)
	in.Description = cleanProse(in.Description)
	in.Scope = cleanProse(in.Scope)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.Reward.IsNegative() {
		return nil, Invalid(FieldIssue{Field: "reward", Rule: "min", Message: "reward must not be negative"})
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	bounty := &models.Bounty{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Slug:        bountySlug(in.Title),
		Description: in.Description,
		Scope:       in.Scope,
		Reward:      in.Reward.Round(2),
		Currency:    in.Currency,
		Status:      models.BountyStatusOpen,
	}
	if err := s.DB.WithContext(ctx).Create(bounty).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Conflict("bounty slug already taken")
		}
		return nil, Internal("create bounty", err)
	}
	log.Printf("[BOUNTY] %s created by %s (%s)", bounty.ID, ownerID, bounty.Slug)
	return bounty, nil
}

// Get resolves a bounty by id or slug.
func (s *BountyService) Get(ctx context.Context, ref string) (*models.Bounty, error) {
	return findBounty(s.DB.WithContext(ctx), ref)
}

func (s *BountyService) List(ctx context.Context, f BountyFilter) ([]models.Bounty, int64, error) {
	page, size := normalizePage(f.Page, f.Size)
	var issues []FieldIssue
	if f.Status != "" && !f.Status.Valid() {
		issues = append(issues, FieldIssue{Field: "status", Rule: "oneof", Message: "status must be one of: open verifying solved"})
	}
	if f.OwnerID != "" {
		if _, err := uuid.Parse(f.OwnerID); err != nil {
			issues = append(issues, FieldIssue{Field: "owner_id", Rule: "uuid", Message: "owner_id must be a valid UUID"})
		}
	}
	if len(issues) > 0 {
		return nil, 0, Invalid(issues...)
	}

	q := s.DB.WithContext(ctx).Model(&models.Bounty{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, Internal("count bounties", err)
	}
	var bounties []models.Bounty
	if err := q.Order("created_at DESC").Limit(size).Offset((page - 1) * size).Find(&bounties).Error; err != nil {
		return nil, 0, Internal("list bounties", err)
	}
	return bounties, total, nil
}

// Update edits an open bounty. Owner only.
func (s *BountyService) Update(ctx context.Context, ref, ownerID string, in UpdateBountyInput) (*models.Bounty, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		t := cleanLine(*in.Title)
		in.Title = &t
		updates["title"] = t
	}
	if in.Description != nil {
		d := cleanProse(*in.Description)
		in.Description = &d
		updates["description"] = d
	}
	if in.Scope != nil {
		sc := cleanProse(*in.Scope)
		in.Scope = &sc
		updates["scope"] = sc
	}
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.Reward != nil {
		if in.Reward.IsNegative() {
			return nil, Invalid(FieldIssue{Field: "reward", Rule: "min", Message: "reward must not be negative"})
		}
		updates["reward"] = in.Reward.Round(2)
	}

	db := s.DB.WithContext(ctx)
	bounty, err := findBounty(db, ref)
	if err != nil {
		return nil, err
	}
	if bounty.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	if len(updates) == 0 {
		return bounty, nil
	}

	// Terms are frozen once a report has been verified.
	res := db.Model(&models.Bounty{}).
		Where("id = ? AND status = ?", bounty.ID, models.BountyStatusOpen).
		Updates(updates)
	if res.Error != nil {
		return nil, Internal("update bounty", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrBountyClosed
	}
	return findBounty(db, bounty.ID)
}

// Delete soft-deletes an open bounty. Owner only.
func (s *BountyService) Delete(ctx context.Context, ref, ownerID string) error {
	db := s.DB.WithContext(ctx)
	bounty, err := findBounty(db, ref)
	if err != nil {
		return err
	}
	if bounty.OwnerID != ownerID {
		return ErrNotOwner
	}
	res := db.Where("id = ? AND status = ?", bounty.ID, models.BountyStatusOpen).Delete(&models.Bounty{})
	if res.Error != nil {
		return Internal("delete bounty", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBountyClosed
	}
	log.Printf("[BOUNTY] %s deleted by %s", bounty.ID, ownerID)
	return nil
}

func findBounty(db *gorm.DB, ref string) (*models.Bounty, error) {
	var bounty models.Bounty
	q := db.Where("slug = ?", ref)
	if _, err := uuid.Parse(ref); err == nil {
		q = db.Where("id = ?", ref)
	}
	if err := q.First(&bounty).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("bounty")
		}
		return nil, Internal("load bounty", err)
	}
	return &bounty, nil
}

func bountySlug(title string) string {
	base := slug.Make(title)
	if base == "" {
		base = "bounty"
	}
	if len(base) > 80 {
		base = strings.TrimRight(base[:80], "-")
	}
	return base + "-" + uuid.NewString()[:8]
}
