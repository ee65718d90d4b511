package presence

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreOnlineOffline(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute)

	online, err := s.IsOnline(ctx, "u1")
	if err != nil {
		t.Fatalf("IsOnline failed: %v", err)
	}
	if online {
		t.Error("expected offline before SetOnline")
	}

	if err := s.SetOnline(ctx, "u1"); err != nil {
		t.Fatalf("SetOnline failed: %v", err)
	}
	online, _ = s.IsOnline(ctx, "u1")
	if !online {
		t.Error("expected online after SetOnline")
	}

	if err := s.SetOffline(ctx, "u1"); err != nil {
		t.Fatalf("SetOffline failed: %v", err)
	}
	online, _ = s.IsOnline(ctx, "u1")
	if online {
		t.Error("expected offline after SetOffline")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(30 * time.Millisecond)

	if err := s.SetOnline(ctx, "u1"); err != nil {
		t.Fatalf("SetOnline failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	online, err := s.IsOnline(ctx, "u1")
	if err != nil {
		t.Fatalf("IsOnline failed: %v", err)
	}
	if online {
		t.Error("expected entry to expire after TTL")
	}
}

func TestMemoryStoreRefreshExtendsTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(60 * time.Millisecond)

	_ = s.SetOnline(ctx, "u1")
	time.Sleep(40 * time.Millisecond)
	if err := s.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	// 80ms elapsed since SetOnline but only 40ms since Refresh.
	online, _ := s.IsOnline(ctx, "u1")
	if !online {
		t.Error("expected refresh to extend the TTL")
	}
}
