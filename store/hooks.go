package store

// Hooks are lightweight callbacks for high-signal events. Implementations
// MUST be cheap and non-blocking; the store calls them on hot paths. Wrap
// slow sinks in asynchook.
type Hooks interface {
	// A record was deleted by the store on read.
	// reason ∈ {"corrupt", "payload_decode"}
	SelfHeal(storageKey, reason string)

	// Backend returned ok=false on Set (backpressure/eviction).
	SetRejected(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string) {}
func (NopHooks) SetRejected(string)      {}
