package dns

import "github.com/fwnet/netcore"

// pendingMap is the TX token map spec §9 "Matcher container" describes:
// push to tail, in-order iteration, removal by key, with a stable
// iteration order even when entries are mutated concurrently by the
// retransmit timer's raised-priority callback (spec §5's "scoped
// acquisition pattern") and by a UDP completion callback running on the
// main poll thread. Backed by a slice of token entries guarded by a
// CriticalSection; each Token carries its own query packet, so the map
// stores no separate value. The order requirement is what matters, not
// the node shape.
type pendingMap struct {
	mu      netcore.CriticalSection
	entries []*pendingEntry
}

type pendingEntry struct {
	token *Token
}

func (m *pendingMap) push(t *Token) {
	defer m.mu.Raise().Restore()
	m.entries = append(m.entries, &pendingEntry{token: t})
}

// find returns the first token (in push order) for which pred is true,
// without removing it.
func (m *pendingMap) find(pred func(*Token) bool) *Token {
	defer m.mu.Raise().Restore()
	for _, e := range m.entries {
		if pred(e.token) {
			return e.token
		}
	}
	return nil
}

// remove removes t by identity. Returns true if it was present.
func (m *pendingMap) remove(t *Token) bool {
	defer m.mu.Raise().Restore()
	for i, e := range m.entries {
		if e.token == t {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true
		}
	}
	return false
}

// all returns a snapshot, in push order, for iteration by the
// retransmit timer.
func (m *pendingMap) all() []*Token {
	defer m.mu.Raise().Restore()
	out := make([]*Token, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.token
	}
	return out
}

func (m *pendingMap) len() int {
	defer m.mu.Raise().Restore()
	return len(m.entries)
}
