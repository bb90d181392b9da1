package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/medeiros-dev/reservation-notifier/configs"
	"github.com/medeiros-dev/reservation-notifier/internal/app/registry"
	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/offline"
	"github.com/medeiros-dev/reservation-notifier/pkg/lineproto"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"
)

const (
	DriverName = "redis"

	keyPrefix = "reservation-notifier:offline:"
	mtimeKey  = keyPrefix + "mtime"
)

// sweepScript deletes one user's log if its last write is older than the cutoff.
// KEYS[1] mtime hash, KEYS[2] log list, ARGV[1] user id, ARGV[2] cutoff millis.
var sweepScript = goredis.NewScript(`
local m = redis.call('HGET', KEYS[1], ARGV[1])
if m and tonumber(m) < tonumber(ARGV[2]) then
	redis.call('DEL', KEYS[2])
	redis.call('HDEL', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

func init() {
	err := registry.RegisterStoreFactory(DriverName, func(cfg *configs.Config) (offline.Store, error) {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewStore(client), nil
	})
	if err != nil {
		logger.L().Fatal("Failed to register offline store driver", zap.String("driver", DriverName), zap.Error(err))
	}
}

// Store keeps each user's offline log in a Redis list and the time of its last
// append in a shared hash.
type Store struct {
	client goredis.UniversalClient
	now    func() time.Time
}

var _ offline.Store = (*Store)(nil)

func NewStore(client goredis.UniversalClient) *Store {
	return &Store{client: client, now: time.Now}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func listKey(userID string) string {
	return keyPrefix + "log:" + userID
}

func (s *Store) ready() error {
	if s.client == nil {
		return domain.ErrStoreNotConfigured
	}
	return nil
}

func (s *Store) Save(ctx context.Context, userID string, n domain.Notification) error {
	if err := s.ready(); err != nil {
		return err
	}
	record := lineproto.EncodeRecord(n)
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, listKey(userID), record)
		p.HSet(ctx, mtimeKey, userID, s.now().UnixMilli())
		return nil
	})
	if err != nil {
		return fmt.Errorf("append offline record for %q: %w", userID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, userID string) ([]domain.Notification, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	lines, err := s.client.LRange(ctx, listKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read offline log for %q: %w", userID, err)
	}
	return decode(ctx, userID, lines), nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, listKey(userID))
		p.HDel(ctx, mtimeKey, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove offline log for %q: %w", userID, err)
	}
	return nil
}

// Count decodes the list like Load, so it matches what a Drain would return.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	items, err := s.Load(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (s *Store) Drain(ctx context.Context, userID string) ([]domain.Notification, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var lrange *goredis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		lrange = p.LRange(ctx, listKey(userID), 0, -1)
		p.Del(ctx, listKey(userID))
		p.HDel(ctx, mtimeKey, userID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain offline log for %q: %w", userID, err)
	}
	return decode(ctx, userID, lrange.Val()), nil
}

func (s *Store) SweepOlderThan(ctx context.Context, horizon time.Duration) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	stamps, err := s.client.HGetAll(ctx, mtimeKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list offline logs: %w", err)
	}

	cutoff := s.now().Add(-horizon).UnixMilli()
	deleted := 0
	var errs []error
	for userID, raw := range stamps {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || millis >= cutoff {
			continue
		}
		removed, err := sweepScript.Run(ctx, s.client, []string{mtimeKey, listKey(userID)}, userID, cutoff).Int()
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep offline log for %q: %w", userID, err))
			continue
		}
		deleted += removed
	}
	return deleted, errors.Join(errs...)
}

func decode(ctx context.Context, userID string, lines []string) []domain.Notification {
	items := make([]domain.Notification, 0, len(lines))
	for i, line := range lines {
		n, err := lineproto.DecodeRecord(userID, line)
		if err != nil {
			logger.L().Warn("Skipping corrupt offline record",
				zap.String("userID", userID),
				zap.Int("index", i),
				logger.TraceField(ctx),
				zap.Error(err),
			)
			continue
		}
		items = append(items, n)
	}
	return items
}
