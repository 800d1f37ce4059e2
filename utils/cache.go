// File: utils/cache.go
package utils

import (
	"bookline/config"
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	// TenantCacheClient caches resolved tenant contexts.
	TenantCacheClient *redis.Client
	// OpsCacheClient holds operator-escalation dedup keys.
	OpsCacheClient *redis.Client
)

// InitTenantCache initializes the Redis client for tenant-context caching.
func InitTenantCache() {
	TenantCacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := TenantCacheClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (Tenant Cache): %v", err)
	}
}

// GetTenantCacheClient returns the tenant-context cache client.
func GetTenantCacheClient() *redis.Client {
	if TenantCacheClient == nil {
		InitTenantCache()
	}
	return TenantCacheClient
}

// InitOpsCache initializes the Redis client for escalation dedup.
func InitOpsCache() {
	OpsCacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisOpsDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := OpsCacheClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (Ops Cache): %v", err)
	}
}

// GetOpsCacheClient returns the Redis client for escalation dedup.
func GetOpsCacheClient() *redis.Client {
	if OpsCacheClient == nil {
		InitOpsCache()
	}
	return OpsCacheClient
}
