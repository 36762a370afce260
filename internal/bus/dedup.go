package bus

import (
	"bytes"
	"encoding/json"
	"sync"
)

// PushDeduplicator drops consecutive pushes whose payload equals the last
// one delivered under the same name. The boundary offers no delivery
// guarantees, so peers re-push state liberally; subscribers that react to
// every push (the fullscreen listener in particular) wrap their handler in
// one of these.
type PushDeduplicator struct {
	mu   sync.Mutex
	last map[string][]byte
}

// NewPushDeduplicator creates an empty deduplicator.
func NewPushDeduplicator() *PushDeduplicator {
	return &PushDeduplicator{last: make(map[string][]byte)}
}

// Wrap returns a handler that invokes fn only when the payload differs from
// the previous payload seen for name.
func (d *PushDeduplicator) Wrap(name string, fn func(payload json.RawMessage)) func(payload json.RawMessage) {
	return func(payload json.RawMessage) {
		d.mu.Lock()
		if prev, ok := d.last[name]; ok && bytes.Equal(prev, payload) {
			d.mu.Unlock()
			return
		}
		d.last[name] = append([]byte(nil), payload...)
		d.mu.Unlock()

		fn(payload)
	}
}

// Reset forgets the last payload for name so the next push always delivers.
func (d *PushDeduplicator) Reset(name string) {
	d.mu.Lock()
	delete(d.last, name)
	d.mu.Unlock()
}
