package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/upcast/store"
)

var ErrNilClient = errors.New("redis backend: nil client")

// Backend stores records in Redis through a go-redis UniversalClient
// (single node, sentinel, or cluster).
type Backend struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ store.Backend = (*Backend)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Backend{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return v, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0 // treat non-positive TTLs as "no expiry" per backend contract
	}

	if err := b.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Backend) Del(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, key).Err()
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (b *Backend) Close(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
