package telemetry

import (
	"sync/atomic"
	"time"
)

// Mailbox hands the newest sample from the receiving goroutine to the
// simulation loop. Older samples are overwritten, never queued, and a
// reader always sees a whole sample.
type Mailbox struct {
	latest atomic.Pointer[Sample]
	seq    atomic.Uint64
}

// Put publishes s as the latest sample.
func (m *Mailbox) Put(s Sample) {
	m.latest.Store(&s)
	m.seq.Add(1)
}

// Latest returns the newest sample, if any arrived.
func (m *Mailbox) Latest() (Sample, bool) {
	p := m.latest.Load()
	if p == nil {
		return Sample{}, false
	}
	return *p, true
}

// Fresh returns the newest sample when it was received within maxAge of now.
func (m *Mailbox) Fresh(now time.Time, maxAge time.Duration) (Sample, bool) {
	s, ok := m.Latest()
	if !ok || now.Sub(s.Received) > maxAge {
		return Sample{}, false
	}
	return s, true
}

// Seq counts the samples put so far.
func (m *Mailbox) Seq() uint64 {
	return m.seq.Load()
}

// Clear drops the held sample.
func (m *Mailbox) Clear() {
	m.latest.Store(nil)
}
