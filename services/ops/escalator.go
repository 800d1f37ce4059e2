package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Incident is a terminal failure that needs operator attention.
type Incident struct {
	ID        string    `json:"id"`
	Class     string    `json:"class"`
	TenantID  string    `json:"tenantId"`
	Recipient string    `json:"recipient"`
	Detail    string    `json:"detail"`
	At        time.Time `json:"at"`
}

// DedupKey groups repeats of the same failure so a burst produces one
// notification.
func (i Incident) DedupKey() string {
	return fmt.Sprintf("ops:incident:%s:%s:%s", i.TenantID, i.Class, i.Recipient)
}

// Deduper suppresses repeated escalations within a window.
type Deduper interface {
	// FirstSeen reports whether this key is new within the window.
	FirstSeen(ctx context.Context, key string, window time.Duration) (bool, error)
}

// RedisDeduper implements Deduper with SETNX + TTL.
type RedisDeduper struct {
	Client *redis.Client
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := d.Client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return ok, nil
}

// AdminNotifier delivers a best-effort notice to an administrator.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, text string) error
}

// Escalator records incidents and notifies an operator, deduplicated over a
// short window to avoid notification storms.
type Escalator interface {
	Escalate(ctx context.Context, inc Incident)
}

// DefaultEscalator implements Escalator. Notify may be nil; the incident is
// still logged.
type DefaultEscalator struct {
	Dedup  Deduper
	Notify AdminNotifier
	Logger *zap.Logger
	Window time.Duration
}

func (e *DefaultEscalator) Escalate(ctx context.Context, inc Incident) {
	if inc.ID == "" {
		inc.ID = uuid.New().String()
	}
	if inc.At.IsZero() {
		inc.At = time.Now()
	}

	e.Logger.Error("delivery incident",
		zap.String("incidentId", inc.ID),
		zap.String("class", inc.Class),
		zap.String("tenantId", inc.TenantID),
		zap.String("recipient", inc.Recipient),
		zap.String("detail", inc.Detail),
	)

	window := e.Window
	if window <= 0 {
		window = 15 * time.Minute
	}
	if e.Dedup != nil {
		first, err := e.Dedup.FirstSeen(ctx, inc.DedupKey(), window)
		if err != nil {
			e.Logger.Warn("escalation dedup unavailable, notifying anyway", zap.Error(err))
		} else if !first {
			return
		}
	}

	if e.Notify == nil {
		return
	}
	text := fmt.Sprintf("[%s] delivery failure %s for %s (tenant %s): %s",
		inc.At.Format(time.RFC3339), inc.Class, inc.Recipient, inc.TenantID, inc.Detail)
	if err := e.Notify.NotifyAdmin(ctx, text); err != nil {
		e.Logger.Warn("admin notification failed", zap.String("incidentId", inc.ID), zap.Error(err))
	}
}
