package notify

import (
	"context"
	"testing"
	"time"
)

func TestSignalNotifyBeforeWait(t *testing.T) {
	s := NewSignal()
	s.Notify()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.Wait(ctx); err != nil {
		t.Fatalf("pre-wait notify was lost: %v", err)
	}
}

func TestSignalCoalescing(t *testing.T) {
	s := NewSignal()
	for i := 0; i < 10; i++ {
		s.Notify()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	// The 10 notifications must have collapsed into the single wake
	// consumed above.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if err := s.Wait(ctx2); err == nil {
		t.Fatal("second wait resolved: notifications were queued, not coalesced")
	}
}

func TestSignalWaitBlocksUntilNotify(t *testing.T) {
	s := NewSignal()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- s.Wait(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	s.Notify()

	if err := <-done; err != nil {
		t.Fatalf("wait after notify: %v", err)
	}
}

func TestSignalWaitContextCancel(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Wait(ctx); err != context.Canceled {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestValueLatestWins(t *testing.T) {
	v := NewValue[int]()
	v.Set(1)
	v.Set(2)
	v.Set(3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := v.Take(ctx)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got != 3 {
		t.Fatalf("want latest value 3, got %d", got)
	}

	if _, ok := v.TryTake(); ok {
		t.Fatal("slot should be empty after take")
	}
}

func TestValueTakeBlocksUntilSet(t *testing.T) {
	v := NewValue[string]()

	done := make(chan string, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		got, err := v.Take(ctx)
		if err != nil {
			done <- "error: " + err.Error()
			return
		}
		done <- got
	}()

	time.Sleep(10 * time.Millisecond)
	v.Set("hello")

	if got := <-done; got != "hello" {
		t.Fatalf("want hello, got %q", got)
	}
}

func TestValueSelectPattern(t *testing.T) {
	v := NewValue[int]()
	v.Set(42)

	// The select-then-TryTake pattern used by the task loops.
	select {
	case <-v.C():
		got, ok := v.TryTake()
		if !ok {
			t.Fatal("wake with empty slot")
		}
		if got != 42 {
			t.Fatalf("want 42, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no wake pending")
	}
}
