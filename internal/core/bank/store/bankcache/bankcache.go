// Package bankcache stores a bank snapshot in Redis. Saves and loads take a
// distributed lock so processes sharing the key never interleave them.
package bankcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rschio/bank/internal/core/bank"
	"github.com/rschio/bank/internal/core/bank/store/stream"
	"github.com/rschio/bank/internal/web"
	"go.opentelemetry.io/otel/attribute"
)

// ErrLocked is returned when another process holds the snapshot lock.
var ErrLocked = errors.New("bankcache snapshot locked")

const lockExpiry = 30 * time.Second

type Store struct {
	log    *slog.Logger
	client *redis.Client
	key    string
	rs     *redsync.Redsync
}

func NewStore(log *slog.Logger, client *redis.Client, key string) *Store {
	return &Store{
		log:    log,
		client: client,
		key:    key,
		rs:     redsync.New(goredis.NewPool(client)),
	}
}

func (s *Store) lockKey() string {
	return s.key + ":lock"
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	mu := s.rs.NewMutex(s.lockKey(),
		redsync.WithExpiry(lockExpiry),
		redsync.WithTries(8),
	)
	if err := mu.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLocked, err)
	}
	defer func() {
		if _, err := mu.UnlockContext(ctx); err != nil {
			s.log.WarnContext(ctx, "bankcache unlock", "key", s.lockKey(), "ERROR", err)
		}
	}()

	return fn()
}

func (s *Store) Save(ctx context.Context, snap bank.Snapshot) error {
	ctx, span := web.AddSpan(ctx, "core.bank.store.bankcache.Save", attribute.String("key", s.key))
	defer span.End()

	var buf bytes.Buffer
	if err := stream.Encode(&buf, snap); err != nil {
		return err
	}

	return s.withLock(ctx, func() error {
		if err := s.client.Set(ctx, s.key, buf.Bytes(), 0).Err(); err != nil {
			return fmt.Errorf("set %s: %w", s.key, err)
		}
		s.log.InfoContext(ctx, "bankcache.Save", "key", s.key, "bytes", buf.Len())
		return nil
	})
}

func (s *Store) Load(ctx context.Context) (bank.Snapshot, error) {
	ctx, span := web.AddSpan(ctx, "core.bank.store.bankcache.Load", attribute.String("key", s.key))
	defer span.End()

	var snap bank.Snapshot
	err := s.withLock(ctx, func() error {
		bs, err := s.client.Get(ctx, s.key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return bank.ErrNoSnapshot
			}
			return fmt.Errorf("get %s: %w", s.key, err)
		}

		snap, err = stream.Decode(bytes.NewReader(bs))
		if err != nil {
			return err
		}
		s.log.InfoContext(ctx, "bankcache.Load", "key", s.key, "bytes", len(bs))
		return nil
	})
	if err != nil {
		return bank.Snapshot{}, err
	}

	return snap, nil
}
