// Package decode turns raw on-chain events into typed domain events.
//
// Dispatch is keyed by (package, module, event type); each protocol
// registers one decode function per event it understands. Decode failure
// is never fatal: unknown keys and malformed payloads both yield an
// Unrecognized event so the pipeline can count and move on.
package decode

import (
	"fmt"

	"sui-mev-indexer/internal/domain"
)

// Key identifies one on-chain event type.
type Key struct {
	Package string // emitting package ID
	Module  string
	Event   string
}

func (k Key) String() string {
	return k.Package + "::" + k.Module + "::" + k.Event
}

// Func decodes an event payload into exactly one DecodedEvent variant.
type Func func(payload []byte) (domain.DecodedEvent, error)

// Registry maps event keys to decode functions. It is the system's single
// extension point: adding a protocol means registering new functions, never
// touching the pipeline or the stores.
type Registry struct {
	funcs map[Key]Func
}

// NewRegistry creates a registry with all default protocol decoders
// registered: Cetus, Bluefin, Turbos, Bluemove and Aftermath (DEX), Navi,
// Suilend and Scallop (lending), Pyth (oracle).
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[Key]Func)}

	registerCetus(r)
	registerBluefin(r)
	registerTurbos(r)
	registerBluemove(r)
	registerAftermath(r)
	registerNavi(r, defaultNaviAssets())
	registerSuilend(r)
	registerScallop(r)
	registerPyth(r)

	return r
}

// NewEmptyRegistry creates a registry with no decoders, for tests and for
// callers that assemble their own protocol set.
func NewEmptyRegistry() *Registry {
	return &Registry{funcs: make(map[Key]Func)}
}

// Register binds a decode function to an event key, replacing any previous
// binding for the same key.
func (r *Registry) Register(k Key, fn Func) {
	r.funcs[k] = fn
}

// Recognizes reports whether the registry has a decoder for the raw event.
func (r *Registry) Recognizes(raw domain.RawEvent) bool {
	_, ok := r.funcs[Key{Package: raw.Package, Module: raw.Module, Event: raw.EventType}]
	return ok
}

// Decode produces exactly one DecodedEvent for the raw event. It never
// returns an error: unknown event types and malformed payloads come back
// as *domain.Unrecognized.
func (r *Registry) Decode(raw domain.RawEvent) domain.DecodedEvent {
	k := Key{Package: raw.Package, Module: raw.Module, Event: raw.EventType}
	fn, ok := r.funcs[k]
	if !ok {
		return &domain.Unrecognized{
			Package:   raw.Package,
			Module:    raw.Module,
			EventType: raw.EventType,
			Reason:    "no decoder registered",
		}
	}

	event, err := fn(raw.Payload)
	if err != nil {
		return &domain.Unrecognized{
			Package:   raw.Package,
			Module:    raw.Module,
			EventType: raw.EventType,
			Reason:    fmt.Sprintf("decode %s: %v", k, err),
		}
	}
	return event
}
