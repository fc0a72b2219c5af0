// Package session fans a run's canonical messages out to watchers. The
// run's own consumer stays on the ordered provider stream; watchers here
// observe a best-effort copy and may be dropped if they fall behind.
package session

import (
	"sync"

	"github.com/shaneholloman/automaker/internal/domain"
)

// DefaultBuffer is the receiver channel capacity used when Subscribe is
// called with a non-positive size.
const DefaultBuffer = 64

type Stream struct {
	mu     sync.Mutex
	subs   []*subscriber
	closed bool
}

func NewStream() *Stream {
	return &Stream{}
}

// Subscribe creates a new subscription and returns the receiving end.
// Subscribing to a closed stream returns an already-ended receiver.
func (st *Stream) Subscribe(bufSize int) *Receiver {
	if bufSize <= 0 {
		bufSize = DefaultBuffer
	}
	sub, recv := newSubscription(bufSize)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		close(sub.c)
		return recv
	}
	st.subs = append(st.subs, sub)
	return recv
}

// Publish delivers msg to every live subscriber without blocking. A
// subscriber whose buffer is full is dropped; a slow watcher loses the
// stream rather than stalling the run.
func (st *Stream) Publish(msg domain.ProviderMessage) {
	st.mu.Lock()
	defer st.mu.Unlock()

	alive := st.subs[:0]
	for _, sub := range st.subs {
		if sub.send(msg) {
			alive = append(alive, sub)
		} else {
			close(sub.c)
		}
	}
	for i := len(alive); i < len(st.subs); i++ {
		st.subs[i] = nil
	}
	st.subs = alive
}

// Close ends every subscription. Subsequent Publish calls are no-ops.
func (st *Stream) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	for _, sub := range st.subs {
		close(sub.c)
	}
	st.subs = nil
}
