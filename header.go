package upcast

// Kind identifies a message family within a Group. Values are chosen by the
// application and must be collision-free per group; they carry no meaning
// outside it.
type Kind uint16

// Header is the logical record header recovered before any payload byte is
// decoded: which family the payload belongs to, and which schema version it
// was written under. Version is an int so out-of-range values arriving from
// foreign sources stay representable (and rejectable) instead of wrapping.
type Header struct {
	Kind    Kind
	Version int
}

// Source delivers one record at a time: a header, then the payload it
// announced. ReadHeader must yield both header fields without consuming
// payload bytes; ReadPayload decodes the pending payload into v (a non-nil
// pointer).
//
// stream.Reader implements Source over length-prefixed io.Reader framing;
// store uses a record envelope. Any transport that can produce
// (kind, version) ahead of the payload qualifies.
type Source interface {
	ReadHeader() (Header, error)
	ReadPayload(v any) error
}

// Sink is the write-side counterpart: one header plus one payload per call.
// Implementations serialize v first so the header can carry the payload
// length (stream.Writer does exactly that).
type Sink interface {
	WriteMessage(hdr Header, v any) error
}
