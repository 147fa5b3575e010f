package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryLimiterBudget(t *testing.T) {
	l := NewMemoryLimiter(Config{MaxRequests: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Admit(ctx, "client-a")
		if err != nil {
			t.Fatalf("Admit: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
		if want := 3 - (i + 1); d.Remaining != want {
			t.Fatalf("remaining = %d, want %d", d.Remaining, want)
		}
	}

	d, err := l.Admit(ctx, "client-a")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if d.Allowed {
		t.Fatal("budget exhausted but request admitted")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("retry-after out of range: %v", d.RetryAfter)
	}

	// Other clients are unaffected.
	if d, _ := l.Admit(ctx, "client-b"); !d.Allowed {
		t.Fatal("independent client should be admitted")
	}
}

func TestMemoryLimiterNeverOverAdmits(t *testing.T) {
	const (
		limit = 10
		calls = 10000
	)
	l := NewMemoryLimiter(Config{MaxRequests: limit, Window: time.Minute})
	ctx := context.Background()

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Admit(ctx, "hot-client")
			if err != nil {
				t.Errorf("Admit: %v", err)
				return
			}
			if d.Allowed {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Fatalf("admitted %d of %d concurrent calls, want exactly %d", admitted, calls, limit)
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(
		Config{MaxRequests: 2, Window: time.Minute},
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if d, _ := l.Admit(ctx, "client-a"); !d.Allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}
	if d, _ := l.Admit(ctx, "client-a"); d.Allowed {
		t.Fatal("should be rejected within the window")
	}

	// After the window elapses the budget is restored.
	now = now.Add(61 * time.Second)
	if d, _ := l.Admit(ctx, "client-a"); !d.Allowed {
		t.Fatal("exhausted client should be admitted after window reset")
	}
}

func TestMemoryLimiterRejectionHasNoSideEffects(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(
		Config{MaxRequests: 1, Window: time.Minute},
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	if d, _ := l.Admit(ctx, "client-a"); !d.Allowed {
		t.Fatal("first request should be admitted")
	}
	// Hammering a rejected client must not extend or corrupt its window.
	for i := 0; i < 100; i++ {
		if d, _ := l.Admit(ctx, "client-a"); d.Allowed {
			t.Fatal("over-admitted")
		}
	}
	now = now.Add(61 * time.Second)
	if d, _ := l.Admit(ctx, "client-a"); !d.Allowed {
		t.Fatal("window should still reset on schedule after rejections")
	}
}

func TestMemoryLimiterEviction(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(
		Config{MaxRequests: 5, Window: time.Minute},
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if _, err := l.Admit(ctx, key); err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}
	if remaining := l.Evict(); remaining != 3 {
		t.Fatalf("nothing should be evicted inside the window, tracked=%d", remaining)
	}

	now = now.Add(2 * time.Minute)
	if remaining := l.Evict(); remaining != 0 {
		t.Fatalf("expected all idle windows evicted, tracked=%d", remaining)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.MaxRequests != DefaultMaxRequests {
		t.Fatalf("MaxRequests default = %d", cfg.MaxRequests)
	}
	if cfg.Window != DefaultWindow {
		t.Fatalf("Window default = %v", cfg.Window)
	}
}
