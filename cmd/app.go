package cmd

import (
	"context"
	"fmt"

	"mediapool-bot/internal/auth"
	"mediapool-bot/internal/config"
	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/sqlstore"
)

// openStore connects the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMongo:
		client, db, err := database.ConnectDB(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase)
		if err != nil {
			return nil, err
		}
		return database.NewMongoStore(client, db), nil
	case config.StorageSQLite:
		return sqlstore.Open(sqlstore.DriverSQLite, cfg.SQLitePath, cfg.Debug)
	case config.StorageMySQL:
		return sqlstore.Open(sqlstore.DriverMySQL, cfg.MySQLDSN, cfg.Debug)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// newMembershipCache returns the configured cache and a function releasing it.
func newMembershipCache(ctx context.Context, cfg *config.Config) (auth.MembershipCache, func() error, error) {
	if cfg.MembershipCache == config.CacheRedis {
		cache, err := auth.NewRedisCache(ctx, cfg.RedisURL, cfg.MembershipCacheTTL)
		if err != nil {
			return nil, nil, err
		}
		return cache, cache.Close, nil
	}
	cache := auth.NewMemoryCache(cfg.MembershipCacheTTL, cfg.MembershipCacheSize)
	return cache, func() error { return nil }, nil
}
