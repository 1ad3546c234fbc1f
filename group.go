package upcast

import (
	"fmt"
	"reflect"
)

// Message is the result of group dispatch: the kind the record carried and
// its value upgraded to the family's latest version. Callers type-switch on
// Value.
type Message struct {
	Kind  Kind
	Value any
}

// GroupOptions configure NewGroup. Families is required.
type GroupOptions struct {
	// Families maps each kind to its version family. The map is copied;
	// mutating the caller's map afterwards has no effect on the group.
	Families map[Kind]*Family

	Logger Logger // if nil, NopLogger is used
}

// Group is an immutable registry of kinds, built once at startup. It
// dispatches incoming records to the right family by header and identifies
// outgoing values by their Go type. Safe for concurrent use.
type Group struct {
	families map[Kind]*Family
	byType   map[reflect.Type]Header
	log      Logger
}

// NewGroup validates the configured families - every version has a type,
// every step is present and pairs with its neighbouring version types, no
// Go type occurs twice anywhere in the group - and freezes them against
// further registration.
func NewGroup(opts GroupOptions) (*Group, error) {
	if len(opts.Families) == 0 {
		return nil, fmt.Errorf("upcast: at least one family is required")
	}

	g := &Group{
		families: make(map[Kind]*Family, len(opts.Families)),
		byType:   make(map[reflect.Type]Header),
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
	}
	for kind, f := range opts.Families {
		if f == nil {
			return nil, fmt.Errorf("upcast: kind %d: nil family", kind)
		}
		if err := f.validate(); err != nil {
			return nil, fmt.Errorf("upcast: kind %d: %w", kind, err)
		}
		g.families[kind] = f
		for i, t := range f.types {
			if prev, ok := g.byType[t]; ok {
				return nil, fmt.Errorf("upcast: type %v registered twice (kind %d version %d and kind %d version %d)",
					t, prev.Kind, prev.Version, kind, i+1)
			}
			g.byType[t] = Header{Kind: kind, Version: i + 1}
		}
	}
	for _, f := range g.families {
		f.freeze()
	}
	return g, nil
}

// ReadMessage reads one record from src: header, kind dispatch, payload
// decode, upgrade to latest. Header errors pass through unchanged, so a
// clean io.EOF from a stream source surfaces as io.EOF. An unknown kind
// fails before any payload byte is consumed; there is no default family.
func (g *Group) ReadMessage(src Source) (Message, error) {
	hdr, err := src.ReadHeader()
	if err != nil {
		return Message{}, err
	}
	f, ok := g.families[hdr.Kind]
	if !ok {
		return Message{}, errorf(CodeUnknownKind, "no family for kind %d", hdr.Kind)
	}
	v, err := f.Decode(src, hdr.Version)
	if err != nil {
		return Message{}, err
	}
	if hdr.Version != f.latest {
		g.logUpgrade(hdr.Kind, f, hdr.Version)
	}
	return Message{Kind: hdr.Kind, Value: v}, nil
}

// Family returns the family registered for kind, for callers embedding
// their own dispatch.
func (g *Group) Family(kind Kind) (*Family, bool) {
	f, ok := g.families[kind]
	return f, ok
}

// Identify reports the header value would be written under: its kind and
// its registered version. It answers for every registered version, not just
// the latest - writing old versions is how old data gets created in the
// first place.
func (g *Group) Identify(value any) (Header, bool) {
	hdr, ok := g.byType[reflect.TypeOf(value)]
	return hdr, ok
}

// WriteMessage identifies value and hands it to the sink together with its
// header. An unregistered type fails with CodeUnknownKind before the sink
// is touched.
func (g *Group) WriteMessage(snk Sink, value any) error {
	hdr, ok := g.Identify(value)
	if !ok {
		return errorf(CodeUnknownKind, "type %T is not registered", value)
	}
	return snk.WriteMessage(hdr, value)
}

// Expect reads one record from src that must belong to T's family and
// returns it upgraded. T must be the family's latest-version type (the only
// shape a successful read can produce). A well-formed record of any other
// family fails with CodeUnexpectedKind.
func Expect[T any](g *Group, src Source) (T, error) {
	var zero T

	t := reflect.TypeOf((*T)(nil)).Elem()
	want, ok := g.byType[t]
	if !ok {
		return zero, errorf(CodeUnknownKind, "type %v is not registered", t)
	}
	f := g.families[want.Kind]
	if want.Version != f.latest {
		return zero, errorf(CodeUnexpectedKind, "family %q: %v is version %d, latest is %d", f.name, t, want.Version, f.latest)
	}

	hdr, err := src.ReadHeader()
	if err != nil {
		return zero, err
	}
	if hdr.Kind != want.Kind {
		return zero, errorf(CodeUnexpectedKind, "want kind %d (%s), got kind %d", want.Kind, f.name, hdr.Kind)
	}
	v, err := f.Decode(src, hdr.Version)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, errorf(CodeMissingStep, "family %q: decoded %T, want %T", f.name, v, zero)
	}
	if hdr.Version != f.latest {
		g.logUpgrade(hdr.Kind, f, hdr.Version)
	}
	return out, nil
}

func (g *Group) logUpgrade(kind Kind, f *Family, from int) {
	g.log.Debug("upgraded legacy record", Fields{
		"kind":   kind,
		"family": f.name,
		"from":   from,
		"to":     f.latest,
	})
}
