// Package upcast reads data written under old schema versions and always
// hands back the newest shape. Each message type is a Family: a contiguous
// version history 1..latest with one Go type per version, a decoder per
// version, and a pure upgrade step between neighbours. A Group maps Kind
// identifiers to families and dispatches incoming records by header.
//
// Components:
//   - Family: per-type version chain (decoders + upgrade steps).
//   - Group: immutable Kind -> Family table; header-driven dispatch.
//   - Source/Sink: header+payload transport contract (stream, store, or
//     your own).
//   - codec.Codec: (de)serializes payloads <-> []byte (CBOR by default).
//
// Stream framing (stream subpackage):
//
//	kind(u16 be) | version(u16 be) | length(u32 be) | payload(length)
//
// Registration pattern:
//
//	var Events = upcast.NewFamily("event", 2)
//
//	func init() {
//		upcast.Version[EventV1](Events, 1)
//		upcast.Version[Event](Events, 2)
//		upcast.Step(Events, 1, upgradeEventV1)
//	}
//
//	g, _ := upcast.NewGroup(upcast.GroupOptions{
//		Families: map[upcast.Kind]*upcast.Family{KindEvent: Events},
//	})
//	msg, _ := g.ReadMessage(src) // msg.Value is always the latest shape
package upcast
