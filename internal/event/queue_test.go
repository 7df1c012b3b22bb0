package event

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4, DefaultRetries, nil)

	in := []ID{ConnectionSucceeded, RedDecisionInput, DecisionAcknowledged}
	for _, id := range in {
		if err := q.Push(New(id)); err != nil {
			t.Fatalf("push %s: %v", id, err)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len: got %d, want 3", q.Len())
	}

	for i, want := range in {
		e, ok := q.TryPop()
		if !ok {
			t.Fatalf("pop %d: queue unexpectedly empty", i)
		}
		if e.ID != want {
			t.Errorf("pop %d: got %s, want %s", i, e.ID, want)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("expected empty queue")
	}
}

func TestQueuePushTimesOutWhenFull(t *testing.T) {
	q := NewQueue(2, 10, nil)
	q.Push(New(Tick))
	q.Push(New(Tick))

	var retries []int
	q.retryHook = func(attempt int) { retries = append(retries, attempt) }

	start := time.Now()
	err := q.Push(New(RedDecisionInput))
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("push blocked for %v", elapsed)
	}
	if len(retries) != 10 {
		t.Fatalf("expected 10 retries, got %d", len(retries))
	}
	if retries[9] != 10 {
		t.Errorf("last retry: got %d, want 10", retries[9])
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped: got %d, want 1", q.Dropped())
	}
	if q.Len() != 2 {
		t.Errorf("dropped event must not be queued, Len=%d", q.Len())
	}
}

func TestQueuePushSucceedsAfterRetry(t *testing.T) {
	q := NewQueue(1, 10, nil)
	q.Push(New(Tick))

	// Free a slot from inside the retry loop.
	q.retryHook = func(attempt int) {
		if attempt == 3 {
			q.TryPop()
		}
	}

	if err := q.Push(New(Timeout)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, _ := q.TryPop()
	if e.ID != Timeout {
		t.Errorf("got %s, want TIMEOUT", e.ID)
	}
	if q.Dropped() != 0 {
		t.Errorf("Dropped: got %d, want 0", q.Dropped())
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue(64, DefaultRetries, nil)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				q.Push(New(ConnectionLost))
			}
		}()
	}
	wg.Wait()

	if q.Len() != 40 {
		t.Errorf("Len: got %d, want 40", q.Len())
	}
}

func TestNewQueueDefaults(t *testing.T) {
	q := NewQueue(0, -1, nil)
	if q.Cap() != DefaultCapacity {
		t.Errorf("Cap: got %d, want %d", q.Cap(), DefaultCapacity)
	}
	if q.retries != 0 {
		t.Errorf("retries: got %d, want 0", q.retries)
	}
}

func TestIDString(t *testing.T) {
	if ConnectionLost.String() != "CONN_LOST" {
		t.Errorf("got %q", ConnectionLost.String())
	}
	if got := ID(200).String(); got != "UNKNOWN(200)" {
		t.Errorf("got %q", got)
	}
	if ID(200).Valid() {
		t.Error("ID 200 should be invalid")
	}
	if len(IDs()) != int(numIDs) {
		t.Errorf("IDs: got %d entries", len(IDs()))
	}
}

func TestEventString(t *testing.T) {
	if got := New(Timeout).String(); got != "TIMEOUT" {
		t.Errorf("got %q", got)
	}
	if got := (Event{ID: Timeout, Payload: 3}).String(); got != "TIMEOUT(3)" {
		t.Errorf("got %q", got)
	}
}

func TestTrySendOnTypedChannel(t *testing.T) {
	ch := make(chan int, 1)
	if err := TrySend(ch, 1, 3, nil); err != nil {
		t.Fatalf("first send: %v", err)
	}

	var attempts []int
	err := TrySend(ch, 2, 3, func(attempt int) { attempts = append(attempts, attempt) })
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut on full channel, got %v", err)
	}
	if len(attempts) != 3 || attempts[2] != 3 {
		t.Errorf("retries = %v, want [1 2 3]", attempts)
	}
	if v := <-ch; v != 1 {
		t.Errorf("channel holds %d, want the first value", v)
	}
}

func TestTrySendNoRetries(t *testing.T) {
	ch := make(chan string)
	calls := 0
	if err := TrySend(ch, "x", 0, func(int) { calls++ }); !errors.Is(err, ErrTimedOut) {
		t.Errorf("expected ErrTimedOut, got %v", err)
	}
	if calls != 0 {
		t.Errorf("onRetry called %d times with zero retries", calls)
	}
}
