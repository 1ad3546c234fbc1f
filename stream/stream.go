// Package stream carries upcast records over io.Reader/io.Writer pairs
// using a length-prefixed binary framing:
//
//	kind(u16 be) | version(u16 be) | length(u32 be) | payload(length)
//
// Reader implements upcast.Source and Writer implements upcast.Sink, so a
// Group reads and writes streams directly. Payloads are CBOR unless
// Options.Codec says otherwise.
package stream

import (
	"fmt"
	"io"
	"math"

	"github.com/unkn0wn-root/upcast"
	"github.com/unkn0wn-root/upcast/codec"
	"github.com/unkn0wn-root/upcast/internal/wire"
)

// Options tune a Reader or Writer. The zero value selects CBOR payloads and
// no read limit.
type Options struct {
	// Codec (de)serializes payloads. nil => CBOR (NewCBOR(false)).
	Codec codec.Codec

	// ReadMaxBytes caps a single payload accepted by a Reader; 0 => no cap.
	// An oversized record fails at ReadPayload and is skipped by the next
	// ReadHeader.
	ReadMaxBytes int
}

var defaultCodec = codec.MustCBOR(false)

func (o Options) codecOrDefault() codec.Codec {
	if o.Codec == nil {
		return defaultCodec
	}
	return o.Codec
}

// Reader decodes records from an io.Reader. Like gob.Decoder it is a
// single-goroutine object; wrap bare network or file readers in bufio.
type Reader struct {
	r     io.Reader
	codec codec.Codec
	max   int

	// pending is the length of an announced-but-unread payload, -1 when no
	// header is outstanding. It lets ReadHeader skip records the caller
	// declined to decode (unknown kind, oversized payload) and resync on
	// the next record boundary.
	pending int64
}

var _ upcast.Source = (*Reader)(nil)

func NewReader(r io.Reader, opts Options) *Reader {
	return &Reader{r: r, codec: opts.codecOrDefault(), max: opts.ReadMaxBytes, pending: -1}
}

// ReadHeader reads the next record header. A clean end of stream (zero
// header bytes delivered) is io.EOF; a partially delivered header is
// CodeBadHeader. Any payload left unconsumed from the previous record is
// skipped first.
func (s *Reader) ReadHeader() (upcast.Header, error) {
	if s.pending > 0 {
		if _, err := io.CopyN(io.Discard, s.r, s.pending); err != nil {
			s.pending = -1
			return upcast.Header{}, fmt.Errorf("stream: skip unread payload: %w", err)
		}
	}
	s.pending = -1

	var h [wire.HeaderSize]byte
	if _, err := io.ReadFull(s.r, h[:]); err != nil {
		if err == io.EOF {
			return upcast.Header{}, io.EOF // clean end of stream
		}
		if err == io.ErrUnexpectedEOF {
			return upcast.Header{}, upcast.NewError(upcast.CodeBadHeader,
				fmt.Errorf("stream: truncated header: %w", err))
		}
		return upcast.Header{}, err
	}

	kind, ver, length, err := wire.ParseHeader(h[:])
	if err != nil {
		return upcast.Header{}, upcast.NewError(upcast.CodeBadHeader, err)
	}
	s.pending = int64(length)
	return upcast.Header{Kind: upcast.Kind(kind), Version: int(ver)}, nil
}

// ReadPayload decodes the payload announced by the last ReadHeader into v.
// Calling it with no header outstanding is a misuse error.
func (s *Reader) ReadPayload(v any) error {
	if s.pending < 0 {
		return fmt.Errorf("stream: ReadPayload without a prior ReadHeader")
	}
	length := s.pending
	if s.max > 0 && length > int64(s.max) {
		// leave pending set so the next ReadHeader skips the record
		return fmt.Errorf("stream: payload of %d bytes exceeds ReadMaxBytes %d", length, s.max)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		s.pending = -1
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("stream: truncated payload: %w", err)
		}
		return err
	}
	s.pending = -1

	if err := s.codec.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("stream: decode %s payload: %w", s.codec.Name(), err)
	}
	return nil
}

// Writer encodes records to an io.Writer in the Reader's framing. The
// payload is serialized first so the header can carry its length.
type Writer struct {
	w     io.Writer
	codec codec.Codec
}

var _ upcast.Sink = (*Writer)(nil)

func NewWriter(w io.Writer, opts Options) *Writer {
	return &Writer{w: w, codec: opts.codecOrDefault()}
}

// WriteMessage writes one header+payload record. hdr.Version must fit the
// wire's uint16 and the encoded payload its u32 length.
func (s *Writer) WriteMessage(hdr upcast.Header, v any) error {
	if hdr.Version < 1 || hdr.Version > math.MaxUint16 {
		return fmt.Errorf("stream: version %d does not fit the wire format", hdr.Version)
	}
	payload, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("stream: encode %s payload: %w", s.codec.Name(), err)
	}
	if int64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("stream: payload of %d bytes does not fit the wire format", len(payload))
	}

	var h [wire.HeaderSize]byte
	wire.PutHeader(h[:], uint16(hdr.Kind), uint16(hdr.Version), uint32(len(payload)))
	if _, err := s.w.Write(h[:]); err != nil {
		return err
	}
	_, err = s.w.Write(payload)
	return err
}
