// internal/service/principal.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dangerclosesec/assessly/internal/cache"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/google/uuid"
)

// DirectoryRoleResolver reads the authoritative role straight from the user
// store. It never consults a cache.
type DirectoryRoleResolver struct {
	users repository.UserRepositoryIface
}

func NewDirectoryRoleResolver(users repository.UserRepositoryIface) *DirectoryRoleResolver {
	return &DirectoryRoleResolver{users: users}
}

func (r *DirectoryRoleResolver) ResolveRole(ctx context.Context, userID uuid.UUID) (model.Role, error) {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return user.Role, nil
}

// PrincipalInfo is the tenant context of a user.
type PrincipalInfo struct {
	UserID         uuid.UUID  `json:"user_id"`
	Role           model.Role `json:"role"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	TeamID         *uuid.UUID `json:"team_id,omitempty"`
}

// HasOrganization reports whether the user is bound to an organization.
func (p *PrincipalInfo) HasOrganization() bool {
	return p.OrganizationID != nil
}

// HasTeam reports whether the user has picked a team.
func (p *PrincipalInfo) HasTeam() bool {
	return p.TeamID != nil && *p.TeamID != uuid.Nil
}

// PrincipalCache is a read-through cache of PrincipalInfo over the
// directory store. Cache failures degrade to a store read. It must not be
// used for privileged role checks.
type PrincipalCache struct {
	cache       cache.Cache
	users       repository.UserRepositoryIface
	memberships repository.MembershipRepositoryIface
	ttl         time.Duration
	now         func() time.Time
	epoch       atomic.Uint64
}

// PrincipalCacheConfig holds configuration for the principal cache
type PrincipalCacheConfig struct {
	TTL time.Duration
	Now func() time.Time
}

func NewPrincipalCache(
	c cache.Cache,
	users repository.UserRepositoryIface,
	memberships repository.MembershipRepositoryIface,
	config PrincipalCacheConfig,
) *PrincipalCache {
	if c == nil {
		c = cache.Nop{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &PrincipalCache{
		cache:       c,
		users:       users,
		memberships: memberships,
		ttl:         config.TTL,
		now:         config.Now,
	}
}

func (p *PrincipalCache) key(userID uuid.UUID) string {
	return "principal:" + strconv.FormatUint(p.epoch.Load(), 10) + ":" + userID.String()
}

// Lookup returns the principal's tenant context. notAfter is the expiry of
// the token being served; no entry outlives it.
func (p *PrincipalCache) Lookup(ctx context.Context, userID uuid.UUID, notAfter time.Time) (*PrincipalInfo, error) {
	key := p.key(userID)

	raw, err := p.cache.Get(ctx, key)
	if err == nil {
		var info PrincipalInfo
		if jsonErr := json.Unmarshal(raw, &info); jsonErr == nil && info.UserID == userID {
			return &info, nil
		}
		slog.WarnContext(ctx, "Discarding undecodable principal cache entry", "userID", userID)
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		slog.WarnContext(ctx, "Principal cache read failed", "userID", userID, "error", err)
	}

	info, err := p.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, info, notAfter)
	return info, nil
}

// Load reads the principal from the directory store, bypassing the cache.
func (p *PrincipalCache) Load(ctx context.Context, userID uuid.UUID) (*PrincipalInfo, error) {
	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := &PrincipalInfo{UserID: user.ID, Role: user.Role}

	membership, err := p.memberships.FindByUser(ctx, userID)
	switch {
	case err == nil:
		orgID := membership.OrganizationID
		info.OrganizationID = &orgID
		if membership.HasTeam() {
			teamID := *membership.TeamID
			info.TeamID = &teamID
		}
	case errors.Is(err, domain.ErrMembershipNotFound):
	default:
		return nil, err
	}
	return info, nil
}

// Prime stores info, typically right after login.
func (p *PrincipalCache) Prime(ctx context.Context, info *PrincipalInfo, notAfter time.Time) {
	p.store(ctx, p.key(info.UserID), info, notAfter)
}

func (p *PrincipalCache) store(ctx context.Context, key string, info *PrincipalInfo, notAfter time.Time) {
	ttl := p.ttl
	if !notAfter.IsZero() {
		if remaining := notAfter.Sub(p.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, raw, ttl); err != nil {
		slog.WarnContext(ctx, "Principal cache write failed", "userID", info.UserID, "error", err)
	}
}

// Invalidate drops cached entries for the given users.
func (p *PrincipalCache) Invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = p.key(id)
	}
	if err := p.cache.Delete(ctx, keys...); err != nil {
		slog.WarnContext(ctx, "Principal cache invalidation failed", "count", len(keys), "error", err)
	}
}

// Reset makes every existing entry unreachable from this process.
func (p *PrincipalCache) Reset() {
	p.epoch.Add(1)
}
