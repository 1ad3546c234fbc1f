// Package store keeps versioned records at rest in a pluggable byte
// backend (Ristretto, BigCache, Redis, or your own). Every record carries
// its header in a strict envelope, so data written under an old schema
// version is upgraded transparently on Get - the same dispatch path a
// stream read takes.
//
// Keys:
//
//	rec:<ns>:<key>
//
// Record envelope:
//
//	magic "UPCR" | wirever(1) | kind(u16 be) | ver(u16 be) | vlen(u32 be) | payload(vlen)
//
// Corrupt envelopes and undecodable payloads self-heal: the record is
// deleted and the read misses. Registration and compatibility failures
// (unknown kind or version, missing step) surface unchanged - deleting
// those records would destroy data a newer or differently built program
// could still read.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/upcast"
	"github.com/unkn0wn-root/upcast/codec"
	"github.com/unkn0wn-root/upcast/internal/wire"
)

var defaultCodec = codec.MustCBOR(false)

// Options tune a Store. Namespace, Group, and Backend are required; others
// have sensible defaults.
type Options struct {
	// Required
	Namespace string // logical namespace to avoid collisions, e.g. "events"
	Group     *upcast.Group
	Backend   Backend

	Codec      codec.Codec   // payload codec; nil => CBOR
	Logger     upcast.Logger // if nil, NopLogger is used
	Hooks      Hooks         // if nil, NopHooks is used
	DefaultTTL time.Duration // 0 => no expiry (backend-dependent)
}

// Store reads and writes versioned records through a Backend. Safe for
// concurrent use when the Backend is.
type Store struct {
	ns      string
	group   *upcast.Group
	backend Backend
	codec   codec.Codec
	log     upcast.Logger
	hooks   Hooks
	ttl     time.Duration
}

func New(opts Options) (*Store, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("upcast/store: namespace is required")
	}
	if opts.Group == nil {
		return nil, fmt.Errorf("upcast/store: group is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("upcast/store: backend is required")
	}

	s := &Store{
		ns:      opts.Namespace,
		group:   opts.Group,
		backend: opts.Backend,
		ttl:     opts.DefaultTTL,
	}
	s.codec = coalesce[codec.Codec](opts.Codec, defaultCodec)
	s.log = coalesce[upcast.Logger](opts.Logger, upcast.NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	return s, nil
}

// Put writes value under key with the store's DefaultTTL. The value's type
// must be registered in the store's group - any version, not just the
// latest; writing old versions is allowed. A backend rejecting the write
// under pressure is logged and reported via hooks, not an error.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	return s.PutTTL(ctx, key, value, s.ttl)
}

// PutTTL is Put with an explicit TTL.
func (s *Store) PutTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	hdr, ok := s.group.Identify(value)
	if !ok {
		return upcast.NewError(upcast.CodeUnknownKind, fmt.Errorf("store: type %T is not registered", value))
	}
	payload, err := s.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s payload: %w", s.codec.Name(), err)
	}

	k := s.recordKey(key)
	rec := wire.EncodeRecord(uint16(hdr.Kind), uint16(hdr.Version), payload)
	ok, err = s.backend.Set(ctx, k, rec, ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("backend rejected set (pressure)", upcast.Fields{"key": k})
		s.hooks.SetRejected(k)
	}
	return nil
}

// Get reads the record at key and returns it upgraded to its family's
// latest version. Misses and self-healed records return ok=false with a nil
// error; backend errors and taxonomy failures are returned.
func (s *Store) Get(ctx context.Context, key string) (upcast.Message, bool, error) {
	k := s.recordKey(key)
	raw, ok, err := s.backend.Get(ctx, k)
	if err != nil || !ok {
		return upcast.Message{}, false, err
	}

	kind, ver, payload, err := wire.DecodeRecord(raw)
	if err != nil {
		s.selfHeal(ctx, k, "corrupt")
		return upcast.Message{}, false, nil
	}

	src := &recordSource{
		codec:   s.codec,
		hdr:     upcast.Header{Kind: upcast.Kind(kind), Version: int(ver)},
		payload: payload,
	}
	msg, err := s.group.ReadMessage(src)
	if err != nil {
		if upcast.CodeOf(err) == upcast.CodeIO {
			// opaque payload decode failure means data rot
			s.selfHeal(ctx, k, "payload_decode")
			return upcast.Message{}, false, nil
		}
		return upcast.Message{}, false, err
	}
	return msg, true, nil
}

// Delete removes the record at key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.Del(ctx, s.recordKey(key))
}

// Close releases the backend.
func (s *Store) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}

func (s *Store) recordKey(userKey string) string {
	// isolate by namespace
	return "rec:" + s.ns + ":" + userKey
}

func (s *Store) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = s.backend.Del(ctx, storageKey)
	s.log.Debug("self-healed record", upcast.Fields{"key": storageKey, "reason": reason})
	s.hooks.SelfHeal(storageKey, reason)
}

// recordSource adapts one decoded record to upcast.Source so Get reuses the
// group's full dispatch path.
type recordSource struct {
	codec   codec.Codec
	hdr     upcast.Header
	payload []byte
}

func (r *recordSource) ReadHeader() (upcast.Header, error) { return r.hdr, nil }
func (r *recordSource) ReadPayload(v any) error            { return r.codec.Unmarshal(r.payload, v) }

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
