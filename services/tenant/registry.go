package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tenantRepo "bookline/database/repository/tenant"
	"bookline/models"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const cachePrefix = "tenant:ctx:"

// ErrUnresolvable means the channel identifier maps to no tenant and no
// fallback is configured. The event should be rejected, not crash anything.
var ErrUnresolvable = errors.New("channel identifier resolves to no tenant")

// Registry resolves inbound channel identifiers to tenant contexts.
type Registry interface {
	Resolve(ctx context.Context, channelID string) (*models.TenantContext, error)
	// Refresh purges any cached context and re-reads from the store.
	Refresh(ctx context.Context, tenantID string) (*models.TenantContext, error)
	// VerifyTokenKnown reports whether some active tenant registered this
	// webhook verify token.
	VerifyTokenKnown(ctx context.Context, token string) bool
}

// DefaultRegistry implements Registry with a redis cache in front of the
// tenant repository. Cache may be nil (tests, single-process dev).
type DefaultRegistry struct {
	Repo             tenantRepo.TenantRepository
	Cache            *redis.Client
	Logger           *zap.Logger
	SingleTenantID   string // non-empty forces every event to this tenant
	FallbackTenantID string
	CacheTTL         time.Duration
	MaxAttempts      int
	RetryBase        time.Duration
}

func (r *DefaultRegistry) attempts() int {
	if r.MaxAttempts <= 0 {
		return 3
	}
	return r.MaxAttempts
}

func (r *DefaultRegistry) retryBase() time.Duration {
	if r.RetryBase <= 0 {
		return 200 * time.Millisecond
	}
	return r.RetryBase
}

func (r *DefaultRegistry) Resolve(ctx context.Context, channelID string) (*models.TenantContext, error) {
	if r.SingleTenantID != "" {
		return r.getByIDWithRetry(ctx, r.SingleTenantID)
	}

	if cached := r.cacheGet(ctx, channelID); cached != nil {
		return cached, nil
	}

	tenant, err := r.resolveFromStore(ctx, channelID)
	if err == nil {
		r.cachePut(ctx, channelID, tenant)
		return tenant, nil
	}

	if r.FallbackTenantID != "" {
		r.Logger.Warn("tenant resolution degraded to fallback tenant",
			zap.String("channelId", channelID), zap.Error(err))
		return r.getByIDWithRetry(ctx, r.FallbackTenantID)
	}
	return nil, err
}

// resolveFromStore runs the exact-match / placeholder-adoption ladder with
// bounded exponential backoff on transient failures.
func (r *DefaultRegistry) resolveFromStore(ctx context.Context, channelID string) (*models.TenantContext, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts(); attempt++ {
		if attempt > 0 {
			time.Sleep(r.retryBase() << (attempt - 1))
		}

		tenant, err := r.Repo.GetByChannelID(ctx, channelID)
		if err == nil {
			return tenant, nil
		}
		if !isNotFound(err) {
			lastErr = err
			continue
		}

		// No exact match. A real (non-placeholder) identifier adopts the most
		// recently updated placeholder tenant: self-healing onboarding.
		if channelID == "" || channelID == models.PlaceholderChannelID {
			return nil, ErrUnresolvable
		}
		placeholder, err := r.Repo.LatestPlaceholder(ctx)
		if err != nil {
			if isNotFound(err) {
				return nil, ErrUnresolvable
			}
			lastErr = err
			continue
		}
		if err := r.Repo.RebindChannelID(ctx, placeholder.ID, channelID); err != nil {
			lastErr = err
			continue
		}
		placeholder.ChannelID = channelID
		r.Logger.Info("rebound placeholder tenant to live channel id",
			zap.String("tenantId", placeholder.ID), zap.String("channelId", channelID))
		return placeholder, nil
	}
	return nil, fmt.Errorf("tenant resolution failed after %d attempts: %w", r.attempts(), lastErr)
}

func (r *DefaultRegistry) Refresh(ctx context.Context, tenantID string) (*models.TenantContext, error) {
	tenant, err := r.Repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh tenant %s: %w", tenantID, err)
	}
	if r.Cache != nil {
		r.Cache.Del(ctx, cachePrefix+tenant.ChannelID)
		r.cachePut(ctx, tenant.ChannelID, tenant)
	}
	return tenant, nil
}

func (r *DefaultRegistry) VerifyTokenKnown(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	tenant, err := r.Repo.GetByVerifyToken(ctx, token)
	if err != nil {
		if !isNotFound(err) {
			r.Logger.Warn("verify token lookup failed", zap.Error(err))
		}
		return false
	}
	return tenant != nil
}

func (r *DefaultRegistry) getByIDWithRetry(ctx context.Context, tenantID string) (*models.TenantContext, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts(); attempt++ {
		if attempt > 0 {
			time.Sleep(r.retryBase() << (attempt - 1))
		}
		tenant, err := r.Repo.GetByID(ctx, tenantID)
		if err == nil {
			return tenant, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, lastErr)
}

func (r *DefaultRegistry) cacheGet(ctx context.Context, channelID string) *models.TenantContext {
	if r.Cache == nil {
		return nil
	}
	data, err := r.Cache.Get(ctx, cachePrefix+channelID).Result()
	if err != nil {
		return nil
	}
	var tenant models.TenantContext
	if err := json.Unmarshal([]byte(data), &tenant); err != nil {
		return nil
	}
	return &tenant
}

func (r *DefaultRegistry) cachePut(ctx context.Context, channelID string, tenant *models.TenantContext) {
	if r.Cache == nil {
		return
	}
	ttl := r.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	data, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, cachePrefix+channelID, data, ttl).Err(); err != nil {
		r.Logger.Debug("tenant cache write failed", zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
