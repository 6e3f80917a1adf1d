package sessionguard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/filestore"
	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/redisstore"
	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/sqlitestore"
	"github.com/Sentinel-Gate/sessionguard/internal/config"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

// StorageOptions selects the durable slot driver.
type StorageOptions struct {
	// Driver is memory (default), file, redis or sqlite.
	Driver string
	// Path is used by the file and sqlite drivers.
	Path string

	RedisAddr   string
	RedisDB     int
	RedisPrefix string
	// TTL expires redis slots. Zero keeps them until cleared.
	TTL time.Duration
}

// openSlots builds the slot driver named by opts. The returned close
// function releases driver resources and is never nil.
func openSlots(ctx context.Context, opts StorageOptions, scope string, logger *slog.Logger) (session.SlotStore, func() error, error) {
	nop := func() error { return nil }

	switch opts.Driver {
	case "", config.DriverMemory:
		return memory.NewSlotStore(), nop, nil

	case config.DriverFile:
		s, err := filestore.New(opts.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open file slots: %w", err)
		}
		return s, nop, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
			DB:   opts.RedisDB,
		})
		s := redisstore.New(client, opts.RedisPrefix, scope, opts.TTL)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("connect redis slots: %w", err)
		}
		return s, s.Close, nil

	case config.DriverSQLite:
		s, err := sqlitestore.Open(ctx, opts.Path, scope)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite slots: %w", err)
		}
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
