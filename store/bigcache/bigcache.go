// Package bigcache backs a record store with allegro/bigcache: sharded
// in-process memory, GC-friendly for millions of entries. Expiry is global
// (LifeWindow); per-record TTLs passed by the store are ignored.
package bigcache

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"
)

type Backend struct {
	c *bc.BigCache
}

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Backend, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := b.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return v, err == nil, err
}

func (b *Backend) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	// BigCache has no per-entry TTL; LifeWindow governs expiry.
	return true, b.c.Set(key, value)
}

func (b *Backend) Del(_ context.Context, key string) error {
	// deleting an absent record is fine (self-heal races eviction)
	if err := b.c.Delete(key); err != nil && err != bc.ErrEntryNotFound {
		return err
	}
	return nil
}

func (b *Backend) Close(_ context.Context) error {
	return b.c.Close()
}
