package upcast

import (
	"fmt"
	"reflect"
)

// Family is one message type's version history: a Go type for each version
// 1..latest, a decoder per version, and a pure upgrade step between each
// pair of neighbouring versions.
//
// Register during process initialization (package-level vars plus init
// funcs, in the same spirit as gob.Register): NewFamily, then Version for
// every version, then Step for every version below latest. Registration
// mistakes panic; they are programmer errors, not runtime conditions.
// NewGroup checks completeness and freezes the family, after which further
// registration panics too.
type Family struct {
	name   string
	latest int
	frozen bool

	// all indexed by version-1
	types    []reflect.Type
	decoders []func(Source) (any, error)
	steps    []step // steps[i] upgrades version i+1 -> i+2
}

type step struct {
	fn   func(any) (any, error)
	from reflect.Type
	to   reflect.Type
}

// NewFamily declares a family whose newest schema version is latest. The
// name appears in error and log text only. Panics unless
// 1 <= latest <= 65535 (versions must fit the wire's uint16).
func NewFamily(name string, latest int) *Family {
	if name == "" {
		panic("upcast: family name is required")
	}
	if latest < 1 || latest > 0xFFFF {
		panic(fmt.Sprintf("upcast: family %q: latest version %d out of range [1, 65535]", name, latest))
	}
	return &Family{
		name:     name,
		latest:   latest,
		types:    make([]reflect.Type, latest),
		decoders: make([]func(Source) (any, error), latest),
		steps:    make([]step, latest-1),
	}
}

// Name returns the family's registration name.
func (f *Family) Name() string { return f.name }

// Latest returns the newest registered schema version.
func (f *Family) Latest() int { return f.latest }

func (f *Family) checkMutable(what string) {
	if f.frozen {
		panic(fmt.Sprintf("upcast: family %q: %s after NewGroup", f.name, what))
	}
}

// Version binds T to a version slot of f. The recorded decoder asks the
// source to unmarshal the payload into a fresh T; for pointer types the
// pointee is allocated first, so a *pb.Event slot decodes into a real
// message rather than a nil pointer.
//
// Panics on an out-of-range version, a duplicate registration, or a frozen
// family.
func Version[T any](f *Family, version int) {
	f.checkMutable("Version")
	if version < 1 || version > f.latest {
		panic(fmt.Sprintf("upcast: family %q: version %d out of range [1, %d]", f.name, version, f.latest))
	}
	i := version - 1
	if f.types[i] != nil {
		panic(fmt.Sprintf("upcast: family %q: version %d registered twice", f.name, version))
	}
	f.types[i] = reflect.TypeOf((*T)(nil)).Elem()
	f.decoders[i] = decodeInto[T]
}

func decodeInto[T any](src Source) (any, error) {
	if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() == reflect.Pointer {
		pv := reflect.New(t.Elem())
		if err := src.ReadPayload(pv.Interface()); err != nil {
			return nil, err
		}
		return pv.Interface(), nil
	}
	var v T
	if err := src.ReadPayload(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Step registers the pure transition from version from to from+1. From must
// be the type registered at from, and To the type registered at from+1;
// NewGroup verifies the pairing.
//
// Panics on a nil fn, an out-of-range from, a duplicate step, or a frozen
// family.
func Step[From, To any](f *Family, from int, fn func(From) To) {
	f.checkMutable("Step")
	if fn == nil {
		panic(fmt.Sprintf("upcast: family %q: nil step %d -> %d", f.name, from, from+1))
	}
	if from < 1 || from >= f.latest {
		panic(fmt.Sprintf("upcast: family %q: step %d -> %d out of range [1, %d]", f.name, from, from+1, f.latest-1))
	}
	i := from - 1
	if f.steps[i].fn != nil {
		panic(fmt.Sprintf("upcast: family %q: step %d -> %d registered twice", f.name, from, from+1))
	}
	f.steps[i] = step{
		fn: func(v any) (any, error) {
			in, ok := v.(From)
			if !ok {
				return nil, errorf(CodeMissingStep, "family %q: step %d -> %d: got %T", f.name, from, from+1, v)
			}
			return fn(in), nil
		},
		from: reflect.TypeOf((*From)(nil)).Elem(),
		to:   reflect.TypeOf((*To)(nil)).Elem(),
	}
}

// Upgrade walks value from version up to the family's latest, applying each
// registered step exactly once in increasing order. version == latest
// returns value unchanged with no step invoked. The walk is all-or-nothing:
// the first failure aborts it and no partially upgraded value escapes.
func (f *Family) Upgrade(version int, value any) (any, error) {
	if version < 1 || version > f.latest {
		return nil, errorf(CodeUnknownVersion, "family %q: version %d not in [1, %d]", f.name, version, f.latest)
	}
	for v := version; v < f.latest; v++ {
		st := f.steps[v-1]
		if st.fn == nil {
			return nil, errorf(CodeMissingStep, "family %q: no step %d -> %d", f.name, v, v+1)
		}
		next, err := st.fn(value)
		if err != nil {
			return nil, err
		}
		value = next
	}
	return value, nil
}

// Decode reads one payload of the given version from src and upgrades it to
// latest. The version is range-checked before any payload byte is consumed;
// source errors propagate unchanged.
func (f *Family) Decode(src Source, version int) (any, error) {
	if version < 1 || version > f.latest {
		return nil, errorf(CodeUnknownVersion, "family %q: version %d not in [1, %d]", f.name, version, f.latest)
	}
	dec := f.decoders[version-1]
	if dec == nil {
		return nil, errorf(CodeMissingStep, "family %q: no decoder for version %d", f.name, version)
	}
	v, err := dec(src)
	if err != nil {
		return nil, err
	}
	return f.Upgrade(version, v)
}

// validate checks the family is complete: a type (and with it, a decoder)
// per version, a step per version below latest, and each step's input and
// output types matching the neighbouring version slots.
func (f *Family) validate() error {
	for i, t := range f.types {
		if t == nil {
			return fmt.Errorf("family %q: version %d has no type (missing Version call)", f.name, i+1)
		}
	}
	for i, st := range f.steps {
		if st.fn == nil {
			return fmt.Errorf("family %q: no step %d -> %d", f.name, i+1, i+2)
		}
		if st.from != f.types[i] {
			return fmt.Errorf("family %q: step %d -> %d takes %v, but version %d is %v",
				f.name, i+1, i+2, st.from, i+1, f.types[i])
		}
		if st.to != f.types[i+1] {
			return fmt.Errorf("family %q: step %d -> %d returns %v, but version %d is %v",
				f.name, i+1, i+2, st.to, i+2, f.types[i+1])
		}
	}
	return nil
}

func (f *Family) freeze() { f.frozen = true }
