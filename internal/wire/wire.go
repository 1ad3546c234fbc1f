// Package wire implements the binary codecs owned by upcast: the 8-byte
// stream header and the record envelope used by store. Decoding is strict;
// anything that does not account for every byte is corrupt.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// HeaderSize is the encoded size of a stream header:
// kind(u16 be) | ver(u16 be) | length(u32 be).
const HeaderSize = 8

const (
	wireVersion byte = 1
	// Record: magic(4) | wirever(1) | header(8) | payload.
	recordOverhead = 4 + 1 + HeaderSize
)

var (
	ErrCorrupt = errors.New("upcast: corrupt record")
	magic4     = [...]byte{'U', 'P', 'C', 'R'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// PutHeader encodes kind, version, and payload length into b, which must be
// at least HeaderSize bytes long.
func PutHeader(b []byte, kind, version uint16, length uint32) {
	binary.BigEndian.PutUint16(b[0:2], kind)
	binary.BigEndian.PutUint16(b[2:4], version)
	binary.BigEndian.PutUint32(b[4:8], length)
}

// ParseHeader decodes a stream header. b must be exactly HeaderSize bytes.
func ParseHeader(b []byte) (kind, version uint16, length uint32, err error) {
	if len(b) != HeaderSize {
		return 0, 0, 0, ErrCorrupt
	}
	kind = binary.BigEndian.Uint16(b[0:2])
	version = binary.BigEndian.Uint16(b[2:4])
	length = binary.BigEndian.Uint32(b[4:8])
	return kind, version, length, nil
}

// EncodeRecord frames one payload for storage at rest:
//
//	magic(4) | wirever(1) | kind(u16 be) | ver(u16 be) | vlen(u32 be) | payload(vlen)
func EncodeRecord(kind, version uint16, payload []byte) []byte {
	if int64(len(payload)) > math.MaxUint32 {
		panic("upcast: record payload exceeds 4 GiB")
	}
	var buf bytes.Buffer
	buf.Grow(recordOverhead + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(wireVersion)

	var h [HeaderSize]byte
	PutHeader(h[:], kind, version, uint32(len(payload)))
	buf.Write(h[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeRecord reverses EncodeRecord. The returned payload aliases b
// (zero-copy). vlen must account for every remaining byte; trailing or
// missing bytes are corruption.
func DecodeRecord(b []byte) (kind, version uint16, payload []byte, err error) {
	if len(b) < recordOverhead || !hasMagic(b) || b[4] != wireVersion {
		return 0, 0, nil, ErrCorrupt
	}

	kind, version, vlen, err := ParseHeader(b[5 : 5+HeaderSize])
	if err != nil {
		return 0, 0, nil, err
	}
	if int64(vlen) != int64(len(b)-recordOverhead) {
		return 0, 0, nil, ErrCorrupt
	}
	return kind, version, b[recordOverhead:], nil
}
