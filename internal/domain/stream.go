package domain

import (
	"context"
	"sync"
)

// MessageStream carries the canonical messages of one execution from the
// adapter that produces them to the single consumer that pulls them.
//
// The channel capacity is exactly one record: the producer can run at most
// one message ahead of a slow consumer. The consumer may abandon the stream
// early with Close; the producer observes that through Done (or a false
// Send) and must release whatever it supervises.
type MessageStream struct {
	ch         chan ProviderMessage
	done       chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once
}

func NewMessageStream() *MessageStream {
	return &MessageStream{
		ch:   make(chan ProviderMessage, 1),
		done: make(chan struct{}),
	}
}

// Messages returns the receive side. The channel closes when the producer
// finishes the sequence.
func (s *MessageStream) Messages() <-chan ProviderMessage {
	return s.ch
}

// Next blocks for the next message. ok is false when the sequence has ended
// or ctx is done.
func (s *MessageStream) Next(ctx context.Context) (ProviderMessage, bool) {
	select {
	case msg, ok := <-s.ch:
		return msg, ok
	case <-ctx.Done():
		return ProviderMessage{}, false
	}
}

// Send delivers one message, blocking until the consumer takes it. It
// reports false when the consumer has closed the stream or ctx is done;
// the producer must stop after a false Send.
func (s *MessageStream) Send(ctx context.Context, msg ProviderMessage) bool {
	select {
	case s.ch <- msg:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Finish ends the sequence. No Send may follow. Safe to call more than once.
func (s *MessageStream) Finish() {
	s.finishOnce.Do(func() {
		close(s.ch)
	})
}

// Close abandons the stream from the consumer side. Pending and future
// Sends unblock with false.
func (s *MessageStream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed once the consumer abandons the stream.
func (s *MessageStream) Done() <-chan struct{} {
	return s.done
}

// Drain collects every remaining message until the sequence ends or ctx is
// done. Intended for one-shot callers and tests.
func (s *MessageStream) Drain(ctx context.Context) []ProviderMessage {
	var out []ProviderMessage
	for {
		msg, ok := s.Next(ctx)
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}
