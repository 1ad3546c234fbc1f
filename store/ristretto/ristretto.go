package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

// Backend stores records in an in-process Ristretto cache. Each entry's
// cost is its encoded length, so MaxCost is roughly a byte budget.
type Backend struct {
	c *rc.Cache
}

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, _ := v.([]byte)
	if raw == nil {
		// self-heal: drop unexpected entry shape
		b.c.Del(key)
		return nil, false, nil
	}
	return raw, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return b.c.SetWithTTL(key, value, int64(len(value)), ttl), nil
}

func (b *Backend) Del(_ context.Context, key string) error {
	b.c.Del(key)
	return nil
}

func (b *Backend) Close(_ context.Context) error {
	b.c.Wait()
	b.c.Close()
	return nil
}

// Helper to expose metrics if desired by the application (not part of store.Backend).
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }
