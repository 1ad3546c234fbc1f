package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/unkn0wn-root/upcast"
	"github.com/unkn0wn-root/upcast/codec"
)

const (
	kindPing upcast.Kind = 1
	kindNote upcast.Kind = 2
)

type pingV1 struct {
	Seq uint32
}

type pingV2 struct {
	Seq  uint64
	Node string
}

type note struct {
	Text string
}

func newPingFamily(t *testing.T) *upcast.Family {
	t.Helper()
	f := upcast.NewFamily("ping", 2)
	upcast.Version[pingV1](f, 1)
	upcast.Version[pingV2](f, 2)
	upcast.Step(f, 1, func(v pingV1) pingV2 { return pingV2{Seq: uint64(v.Seq)} })
	return f
}

func newNoteFamily(t *testing.T) *upcast.Family {
	t.Helper()
	f := upcast.NewFamily("note", 1)
	upcast.Version[note](f, 1)
	return f
}

func newStreamGroup(t *testing.T) *upcast.Group {
	t.Helper()
	g, err := upcast.NewGroup(upcast.GroupOptions{
		Families: map[upcast.Kind]*upcast.Family{
			kindPing: newPingFamily(t),
			kindNote: newNoteFamily(t),
		},
	})
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	return g
}

func newNoteOnlyGroup(t *testing.T) *upcast.Group {
	t.Helper()
	g, err := upcast.NewGroup(upcast.GroupOptions{
		Families: map[upcast.Kind]*upcast.Family{kindNote: newNoteFamily(t)},
	})
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	return g
}

func TestStreamRoundTrip(t *testing.T) {
	g := newStreamGroup(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, Options{})

	// an old-version record in the middle: readers upgrade it transparently
	if err := g.WriteMessage(w, pingV2{Seq: 1, Node: "a"}); err != nil {
		t.Fatalf("write ping v2: %v", err)
	}
	if err := g.WriteMessage(w, pingV1{Seq: 5}); err != nil {
		t.Fatalf("write ping v1: %v", err)
	}
	if err := g.WriteMessage(w, note{Text: "done"}); err != nil {
		t.Fatalf("write note: %v", err)
	}

	r := NewReader(&buf, Options{})

	msg, err := g.ReadMessage(r)
	if err != nil {
		t.Fatalf("read 1: %v", err)
	}
	if got, ok := msg.Value.(pingV2); !ok || got != (pingV2{Seq: 1, Node: "a"}) {
		t.Fatalf("msg 1: got %#v", msg.Value)
	}

	msg, err = g.ReadMessage(r)
	if err != nil {
		t.Fatalf("read 2: %v", err)
	}
	if got, ok := msg.Value.(pingV2); !ok || got != (pingV2{Seq: 5}) {
		t.Fatalf("msg 2 should arrive upgraded: got %#v", msg.Value)
	}

	msg, err = g.ReadMessage(r)
	if err != nil {
		t.Fatalf("read 3: %v", err)
	}
	if got, ok := msg.Value.(note); msg.Kind != kindNote || !ok || got.Text != "done" {
		t.Fatalf("msg 3: got %+v", msg)
	}

	// clean end of stream
	if _, err := g.ReadMessage(r); err != io.EOF {
		t.Fatalf("want io.EOF at end, got %v", err)
	}
}

func TestStreamHeaderLayout(t *testing.T) {
	g := newStreamGroup(t)
	var buf bytes.Buffer
	if err := g.WriteMessage(NewWriter(&buf, Options{}), pingV1{Seq: 9}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b := buf.Bytes()
	if len(b) < 8 {
		t.Fatalf("short frame: %x", b)
	}
	if kind := binary.BigEndian.Uint16(b[0:2]); kind != uint16(kindPing) {
		t.Fatalf("kind: got %d", kind)
	}
	if ver := binary.BigEndian.Uint16(b[2:4]); ver != 1 {
		t.Fatalf("version: got %d", ver)
	}
	if length := binary.BigEndian.Uint32(b[4:8]); int(length) != len(b)-8 {
		t.Fatalf("length: got %d want %d", length, len(b)-8)
	}
}

func TestStreamCustomCodec(t *testing.T) {
	g := newStreamGroup(t)
	var buf bytes.Buffer
	opts := Options{Codec: codec.JSON{}}

	if err := g.WriteMessage(NewWriter(&buf, opts), note{Text: "json"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"json"`)) {
		t.Fatalf("payload should be JSON, got %x", buf.Bytes())
	}

	msg, err := g.ReadMessage(NewReader(&buf, opts))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got, ok := msg.Value.(note); !ok || got.Text != "json" {
		t.Fatalf("got %#v", msg.Value)
	}
}

func TestStreamTruncatedHeader(t *testing.T) {
	g := newStreamGroup(t)
	var buf bytes.Buffer
	if err := g.WriteMessage(NewWriter(&buf, Options{}), note{Text: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()[:5]), Options{})
	if _, err := r.ReadHeader(); upcast.CodeOf(err) != upcast.CodeBadHeader {
		t.Fatalf("want CodeBadHeader on a torn header, got %v", err)
	}
}

func TestStreamTruncatedPayload(t *testing.T) {
	g := newStreamGroup(t)
	var buf bytes.Buffer
	if err := g.WriteMessage(NewWriter(&buf, Options{}), note{Text: "truncate me"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()[:buf.Len()-2]), Options{})
	if _, err := r.ReadHeader(); err != nil {
		t.Fatalf("header should parse: %v", err)
	}
	var n note
	err := r.ReadPayload(&n)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("want a truncated payload error, got %v", err)
	}
	if upcast.CodeOf(err) != upcast.CodeIO {
		t.Fatalf("source errors classify as CodeIO, got %v", upcast.CodeOf(err))
	}
}

func TestStreamCleanEOFOnEmpty(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), Options{})
	if _, err := r.ReadHeader(); err != io.EOF {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

func TestStreamReadPayloadWithoutHeader(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), Options{})
	var n note
	if err := r.ReadPayload(&n); err == nil {
		t.Fatalf("expected a misuse error")
	}
}

func TestStreamReadMaxBytes(t *testing.T) {
	g := newStreamGroup(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, Options{})
	if err := g.WriteMessage(w, note{Text: strings.Repeat("a", 64)}); err != nil {
		t.Fatalf("write big: %v", err)
	}
	if err := g.WriteMessage(w, pingV2{Seq: 2}); err != nil {
		t.Fatalf("write small: %v", err)
	}

	r := NewReader(&buf, Options{ReadMaxBytes: 16})
	if _, err := r.ReadHeader(); err != nil {
		t.Fatalf("header: %v", err)
	}
	var n note
	if err := r.ReadPayload(&n); err == nil || !strings.Contains(err.Error(), "ReadMaxBytes") {
		t.Fatalf("want a ReadMaxBytes error, got %v", err)
	}

	// the oversized record is skipped; the reader resyncs on the next one
	msg, err := g.ReadMessage(r)
	if err != nil {
		t.Fatalf("read after oversize: %v", err)
	}
	if got, ok := msg.Value.(pingV2); !ok || got.Seq != 2 {
		t.Fatalf("resynced message: got %#v", msg.Value)
	}
}

func TestStreamSkipsUnconsumedPayload(t *testing.T) {
	full := newStreamGroup(t)
	noteOnly := newNoteOnlyGroup(t)

	var buf bytes.Buffer
	w := NewWriter(&buf, Options{})
	if err := full.WriteMessage(w, pingV1{Seq: 3}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if err := full.WriteMessage(w, note{Text: "after"}); err != nil {
		t.Fatalf("write note: %v", err)
	}

	r := NewReader(&buf, Options{})

	// noteOnly cannot dispatch kindPing; its payload stays unread
	if _, err := noteOnly.ReadMessage(r); upcast.CodeOf(err) != upcast.CodeUnknownKind {
		t.Fatalf("want CodeUnknownKind, got %v", err)
	}

	// the next read must land on the following record, not the stale payload
	msg, err := noteOnly.ReadMessage(r)
	if err != nil {
		t.Fatalf("read after unknown kind: %v", err)
	}
	if got, ok := msg.Value.(note); !ok || got.Text != "after" {
		t.Fatalf("resynced message: got %#v", msg.Value)
	}
}

func TestWriterVersionRange(t *testing.T) {
	w := NewWriter(io.Discard, Options{})
	if err := w.WriteMessage(upcast.Header{Kind: 1, Version: 0}, note{}); err == nil {
		t.Fatalf("version 0 must not be encodable")
	}
	if err := w.WriteMessage(upcast.Header{Kind: 1, Version: 0x10000}, note{}); err == nil {
		t.Fatalf("version 65536 must not be encodable")
	}
}
