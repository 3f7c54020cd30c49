package role

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kingrea/staff-directory/internal/config"
)

// OpenPersister builds the adapter selected by role.store. The returned
// close func is always non-nil.
func OpenPersister(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Persister, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }
	settings := cfg.Role()
	switch settings.Store {
	case config.StoreFile:
		return NewFilePersister(cfg.RoleStatePath()), noop, nil
	case config.StoreMemory:
		return NewMemoryPersister(), noop, nil
	case config.StoreSQLite:
		p, err := OpenSQLitePersister(ctx, cfg.PreferencesDBPath(), settings.Key)
		if err != nil {
			return nil, noop, fmt.Errorf("role: %w", err)
		}
		return p, p.Close, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("unable to reach redis", zap.String("addr", settings.Redis.Addr), zap.Error(err))
		} else {
			logger.Info("connected to redis", zap.String("addr", settings.Redis.Addr))
		}
		return NewRedisPersister(client, settings.Key), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("role: unsupported store %q", settings.Store)
	}
}
