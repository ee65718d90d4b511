package bus

import (
	"testing"
	"time"

	"studyhub/pkg/interfaces"
)

func recvPayload(t *testing.T, sub interfaces.Subscription) []byte {
	t.Helper()
	select {
	case payload, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestMemoryBusPublishDelivers(t *testing.T) {
	b := NewMemoryBus(10)
	defer b.Close()

	sub, err := b.Subscribe(UserGroup("u1"))
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := b.Publish(UserGroup("u1"), []byte("hello")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	payload := recvPayload(t, sub)
	if string(payload) != "hello" {
		t.Errorf("expected 'hello', got %q", payload)
	}
}

func TestMemoryBusFanOut(t *testing.T) {
	b := NewMemoryBus(10)
	defer b.Close()

	sub1, _ := b.Subscribe(MeetingGroup("room1"))
	sub2, _ := b.Subscribe(MeetingGroup("room1"))
	other, _ := b.Subscribe(MeetingGroup("room2"))

	if err := b.Publish(MeetingGroup("room1"), []byte("x")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	recvPayload(t, sub1)
	recvPayload(t, sub2)

	select {
	case <-other.C():
		t.Error("subscriber of a different group received the payload")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusPublishNoSubscribers(t *testing.T) {
	b := NewMemoryBus(10)
	defer b.Close()

	// No members is a valid publish, not an error.
	if err := b.Publish(UserGroup("nobody"), []byte("x")); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestMemoryBusUnsubscribeReleasesGroup(t *testing.T) {
	b := NewMemoryBus(10)
	defer b.Close()

	sub, _ := b.Subscribe(UserGroup("u1"))

	stats := b.Stats()
	if stats["groups"] != 1 || stats["subscribers"] != 1 {
		t.Fatalf("unexpected stats before unsubscribe: %v", stats)
	}

	b.Unsubscribe(sub)

	stats = b.Stats()
	if stats["groups"] != 0 || stats["subscribers"] != 0 {
		t.Errorf("expected empty bus after unsubscribe, got %v", stats)
	}

	if _, ok := <-sub.C(); ok {
		t.Error("expected subscription channel to be closed")
	}

	// Second unsubscribe must be a no-op, not a double close.
	b.Unsubscribe(sub)
}

func TestMemoryBusSlowSubscriberDrops(t *testing.T) {
	b := NewMemoryBus(1)
	defer b.Close()

	sub, _ := b.Subscribe(UserGroup("u1"))

	// Fill the queue, then publish again. The second publish must not
	// block even though nobody is draining.
	if err := b.Publish(UserGroup("u1"), []byte("first")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = b.Publish(UserGroup("u1"), []byte("second"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber queue")
	}

	payload := recvPayload(t, sub)
	if string(payload) != "first" {
		t.Errorf("expected the first payload to survive, got %q", payload)
	}
}

func TestMemoryBusClose(t *testing.T) {
	b := NewMemoryBus(10)
	sub, _ := b.Subscribe(UserGroup("u1"))

	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, ok := <-sub.C(); ok {
		t.Error("expected subscriber channel closed after bus close")
	}
	if _, err := b.Subscribe(UserGroup("u2")); err != interfaces.ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
	if err := b.Publish(UserGroup("u1"), []byte("x")); err != interfaces.ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}

	// Close is idempotent.
	if err := b.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestGroupNames(t *testing.T) {
	if got := UserGroup("42"); got != "dashboard_user_42" {
		t.Errorf("unexpected user group name: %s", got)
	}
	if got := MeetingGroup("abc123"); got != "meeting_abc123" {
		t.Errorf("unexpected meeting group name: %s", got)
	}
	if got := ThreadGroup("t1"); got != "thread_t1" {
		t.Errorf("unexpected thread group name: %s", got)
	}
}
