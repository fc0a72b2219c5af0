package session

import (
	"sync/atomic"

	"github.com/shaneholloman/automaker/internal/domain"
)

// subscriber is the sending side of a subscription held by the Stream.
// Only the Stream closes the channel, always under its lock; the receiving
// side cancels by flag and is pruned on the next publish.
type subscriber struct {
	c         chan domain.ProviderMessage
	cancelled atomic.Bool
}

// Receiver is the receiving end of a subscription held by the watcher.
// C ends (is closed) when the stream closes or the watcher is dropped.
type Receiver struct {
	C   <-chan domain.ProviderMessage
	sub *subscriber
}

func newSubscription(bufSize int) (*subscriber, *Receiver) {
	sub := &subscriber{c: make(chan domain.ProviderMessage, bufSize)}
	return sub, &Receiver{C: sub.c, sub: sub}
}

// send attempts a non-blocking delivery. False means the subscription is
// dead: cancelled by the receiver or too slow to keep up.
func (ss *subscriber) send(msg domain.ProviderMessage) bool {
	if ss.cancelled.Load() {
		return false
	}
	select {
	case ss.c <- msg:
		return true
	default:
		return false
	}
}

// Close ends the subscription from the receiving side. The stream prunes
// it on the next publish.
func (sr *Receiver) Close() {
	sr.sub.cancelled.Store(true)
}
