package services

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"agent-bounty-market/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// RemoteTokenPrefix marks tokens issued by the remote identity service.
	RemoteTokenPrefix = "hub_"
	// LocalTokenPrefix marks tokens issued by this service.
	LocalTokenPrefix = "local_"
	// MinLocalTokenLength is the shortest string looked up as a local token.
	MinLocalTokenLength = 32
)

var remoteTokenPattern = regexp.MustCompile(`^` + RemoteTokenPrefix + `[0-9a-f]{64}$`)

// credentialResolver turns one credential shape into an agent.
type credentialResolver interface {
	resolve(ctx context.Context, token string) (*models.Agent, error)
}

// IdentityResolver dispatches a bearer token to the remote or local strategy
// based on its shape.
type IdentityResolver struct {
	remote credentialResolver
	local  credentialResolver
}

func NewIdentityResolver(db *gorm.DB, client *IdentityClient) *IdentityResolver {
	return &IdentityResolver{
		remote: &remoteResolver{db: db, client: client},
		local:  &localResolver{db: db},
	}
}

// ExtractBearer returns the token of an "Authorization: Bearer <token>" header.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredential
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingCredential
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}

// IsRemoteToken reports whether token has the exact remote-identity shape.
func IsRemoteToken(token string) bool {
	return remoteTokenPattern.MatchString(token)
}

// Resolve returns the agent owning token.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (*models.Agent, error) {
	strategy, err := r.strategyFor(token)
	if err != nil {
		return nil, err
	}
	return strategy.resolve(ctx, token)
}

func (r *IdentityResolver) strategyFor(token string) (credentialResolver, error) {
	switch {
	case token == "":
		return nil, ErrMissingCredential
	case strings.HasPrefix(token, RemoteTokenPrefix):
		if !IsRemoteToken(token) {
			return nil, ErrMalformedCredential
		}
		return r.remote, nil
	case len(token) >= MinLocalTokenLength:
		return r.local, nil
	}
	return nil, ErrInvalidCredential
}

// ResolveHeader extracts the bearer token from an Authorization header and resolves it.
func (r *IdentityResolver) ResolveHeader(ctx context.Context, header string) (*models.Agent, error) {
	token, err := ExtractBearer(header)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, token)
}

// ResolveOptional never fails: absent or unusable credentials yield nil.
func (r *IdentityResolver) ResolveOptional(ctx context.Context, header string) *models.Agent {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	agent, err := r.ResolveHeader(ctx, header)
	if err != nil {
		log.Printf("[IDENTITY] optional auth ignored: %v", err)
		return nil
	}
	return agent
}

type localResolver struct {
	db *gorm.DB
}

func (l *localResolver) resolve(ctx context.Context, token string) (*models.Agent, error) {
	var agent models.Agent
	err := l.db.WithContext(ctx).Where("local_token = ?", token).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, Internal("look up local token", err)
	}
	return &agent, nil
}

type remoteResolver struct {
	db     *gorm.DB
	client *IdentityClient
}

func (rr *remoteResolver) resolve(ctx context.Context, token string) (*models.Agent, error) {
	profile, err := rr.client.WhoAmI(ctx, token)
	if err != nil {
		return nil, upstreamFailure(err)
	}
	agent, err := UpsertRemoteProfile(rr.db.WithContext(ctx), profile)
	if err != nil {
		return nil, Internal("mirror remote profile", err)
	}
	return agent, nil
}

// upstreamFailure separates a rejected credential (retrying will not help)
// from an unavailable identity service (retry later).
func upstreamFailure(err error) error {
	var se *UpstreamStatusError
	if errors.As(err, &se) {
		if se.Status >= 500 || se.Status == 429 {
			return &Error{Kind: KindUpstream, Message: "identity service unavailable", UpstreamStatus: se.Status, Err: err}
		}
		return &Error{Kind: KindUnauthorized, Message: "remote credential rejected", UpstreamStatus: se.Status, Err: err}
	}
	return &Error{Kind: KindUpstream, Message: "identity service unreachable", Err: err}
}

// NewLocalToken issues a fresh local credential. It never has the remote shape.
func NewLocalToken() string {
	raw := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return LocalTokenPrefix + raw
}

// UpsertRemoteProfile mirrors a remote profile into the agents table keyed by
// remote id. New rows get a fresh local token; existing rows keep their id,
// token, reputation and earnings. Claimed/verified flags are OR-ed so a stale
// profile never downgrades them.
func UpsertRemoteProfile(db *gorm.DB, p *RemoteProfile) (*models.Agent, error) {
	externalID := p.ID
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "agent-" + shortID(externalID)
	}
	now := time.Now().UTC()

	row := models.Agent{
		ID:            uuid.NewString(),
		ExternalID:    &externalID,
		LocalToken:    NewLocalToken(),
		Name:          name,
		Description:   p.Description,
		AvatarURL:     p.AvatarURL,
		FollowerCount: p.FollowerCount,
		Karma:         p.Karma,
		IsClaimed:     p.IsClaimed,
		IsVerified:    p.IsVerified,
		LastSeenAt:    &now,
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":           gorm.Expr("excluded.name"),
			"description":    gorm.Expr("excluded.description"),
			"avatar_url":     gorm.Expr("excluded.avatar_url"),
			"follower_count": gorm.Expr("excluded.follower_count"),
			"karma":          gorm.Expr("excluded.karma"),
			"is_claimed":     gorm.Expr("agents.is_claimed OR excluded.is_claimed"),
			"is_verified":    gorm.Expr("agents.is_verified OR excluded.is_verified"),
			"last_seen_at":   gorm.Expr("excluded.last_seen_at"),
			"updated_at":     now,
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	var stored models.Agent
	if err := db.Where("external_id = ?", externalID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
