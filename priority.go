package netcore

import "sync"

// CriticalSection models the "raise TPL on entry, restore on every exit
// path" pattern spec §5 requires around DNS cache/server-list mutation.
// It is backed by a mutex rather than a real interrupt priority level,
// since this core targets a hosted build of the same cooperative-polling
// design; the scoped-acquisition shape is what matters, not the
// underlying primitive.
type CriticalSection struct {
	mu sync.Mutex
}

// Raised is returned by Raise; calling its Restore method (typically
// deferred immediately) guarantees the critical section is left exactly
// once, including on panicking exit paths.
type Raised struct {
	cs   *CriticalSection
	once sync.Once
}

// Raise enters the critical section. Callers should immediately
// "defer cs.Raise().Restore()" so restoration happens on every return
// path.
func (cs *CriticalSection) Raise() *Raised {
	cs.mu.Lock()
	return &Raised{cs: cs}
}

// Restore leaves the critical section. Safe to call more than once; only
// the first call has an effect.
func (r *Raised) Restore() {
	r.once.Do(func() { r.cs.mu.Unlock() })
}
