package session

import (
	"testing"
	"time"

	"github.com/shaneholloman/automaker/internal/domain"
)

func TestStreamFanOut(t *testing.T) {
	st := NewStream()

	recv1 := st.Subscribe(8)
	recv2 := st.Subscribe(8)

	st.Publish(domain.NewAssistantText("hello"))

	got1 := <-recv1.C
	got2 := <-recv2.C

	if got1.PlainText() != "hello" {
		t.Fatalf("recv1: unexpected message %+v", got1)
	}
	if got2.PlainText() != "hello" {
		t.Fatalf("recv2: unexpected message %+v", got2)
	}
}

func TestCancelledSubscriberPruned(t *testing.T) {
	st := NewStream()

	recv1 := st.Subscribe(8)
	recv2 := st.Subscribe(8)

	recv2.Close()

	st.Publish(domain.NewAssistantText("only-recv1"))

	got := <-recv1.C
	if got.PlainText() != "only-recv1" {
		t.Fatalf("unexpected %+v", got)
	}
	if _, ok := <-recv2.C; ok {
		t.Fatal("cancelled receiver still received a message")
	}

	st.mu.Lock()
	count := len(st.subs)
	st.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected 1 subscriber after cleanup, got %d", count)
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	st := NewStream()
	fast := st.Subscribe(8)
	slow := st.Subscribe(1)

	st.Publish(domain.NewAssistantText("one"))
	st.Publish(domain.NewAssistantText("two"))

	if got := <-fast.C; got.PlainText() != "one" {
		t.Fatalf("fast: unexpected %+v", got)
	}
	if got := <-fast.C; got.PlainText() != "two" {
		t.Fatalf("fast: unexpected %+v", got)
	}

	if got := <-slow.C; got.PlainText() != "one" {
		t.Fatalf("slow: unexpected %+v", got)
	}
	if _, ok := <-slow.C; ok {
		t.Fatal("slow subscriber should have been dropped, not caught up")
	}

	st.mu.Lock()
	count := len(st.subs)
	st.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected 1 subscriber after drop, got %d", count)
	}
}

func TestPublishDoesNotBlock(t *testing.T) {
	st := NewStream()
	st.Subscribe(1) // never read

	done := make(chan struct{})
	go func() {
		st.Publish(domain.NewAssistantText("one"))
		st.Publish(domain.NewAssistantText("two"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on an unread subscriber")
	}
}

func TestStreamCloseClosesAllSubscribers(t *testing.T) {
	st := NewStream()
	recv1 := st.Subscribe(8)
	recv2 := st.Subscribe(8)

	st.Close()

	if _, ok := <-recv1.C; ok {
		t.Fatal("recv1 channel should be closed")
	}
	if _, ok := <-recv2.C; ok {
		t.Fatal("recv2 channel should be closed")
	}
}

func TestSubscribeAfterCloseImmediatelyCloses(t *testing.T) {
	st := NewStream()
	st.Close()

	recv := st.Subscribe(8)

	if _, ok := <-recv.C; ok {
		t.Fatal("channel should be closed")
	}
}

func TestDoubleCloseIsSafe(t *testing.T) {
	st := NewStream()
	recv := st.Subscribe(0)
	recv.Close()
	recv.Close()
	st.Close()
	st.Close()
}

func TestDefaultBufferApplied(t *testing.T) {
	st := NewStream()
	recv := st.Subscribe(0)
	if cap(recv.sub.c) != DefaultBuffer {
		t.Errorf("cap = %d, want %d", cap(recv.sub.c), DefaultBuffer)
	}
}
