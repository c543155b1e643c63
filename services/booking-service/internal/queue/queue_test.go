package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakySubmitter fails a submission a configured number of times before
// letting it through, and records commit order.
type flakySubmitter struct {
	failures map[string]int
	commits  []string
}

func (f *flakySubmitter) submit(_ context.Context, p Payload) (string, error) {
	if f.failures[p.CustomerName] > 0 {
		f.failures[p.CustomerName]--
		return "", errors.New("slot conflict")
	}
	f.commits = append(f.commits, p.CustomerName)
	return "appt-" + p.CustomerName, nil
}

func TestFIFO_HeadRetriedBeforeAdvancing(t *testing.T) {
	q := New()
	sub := &flakySubmitter{failures: map[string]int{"A": 2}}
	w := NewWorker(q, sub.submit, nil, testLogger(), WorkerConfig{MaxAttempts: 3})

	idA, _ := q.Enqueue(Payload{CustomerName: "A"})
	idB, _ := q.Enqueue(Payload{CustomerName: "B"})
	idC, _ := q.Enqueue(Payload{CustomerName: "C"})

	// A fails twice, succeeds on the third attempt; B and C follow.
	for i := 0; i < 5; i++ {
		w.DrainOnce(context.Background())
	}

	want := []string{"A", "B", "C"}
	if fmt.Sprint(sub.commits) != fmt.Sprint(want) {
		t.Fatalf("commit order %v, want %v", sub.commits, want)
	}

	stA, ok := q.Status(idA)
	if !ok || stA.State != StateConfirmed || stA.Attempts != 3 {
		t.Fatalf("A: got %+v ok=%v, want confirmed after 3 attempts", stA, ok)
	}
	if stA.AppointmentID != "appt-A" {
		t.Fatalf("A: appointment id %q", stA.AppointmentID)
	}
	for _, id := range []string{idB, idC} {
		st, ok := q.Status(id)
		if !ok || st.State != StateConfirmed || st.Attempts != 1 {
			t.Fatalf("expected first-try confirm, got %+v ok=%v", st, ok)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be empty, has %d", q.Len())
	}
}

func TestAttemptCap_DropsAndNotifiesOnce(t *testing.T) {
	q := New()
	sub := &flakySubmitter{failures: map[string]int{"A": 99}}

	var terminal []Status
	onTerminal := func(_ Booking, st Status) { terminal = append(terminal, st) }
	w := NewWorker(q, sub.submit, onTerminal, testLogger(), WorkerConfig{MaxAttempts: 3})

	idA, _ := q.Enqueue(Payload{CustomerName: "A"})
	idB, _ := q.Enqueue(Payload{CustomerName: "B"})

	// Three failures exhaust A's budget; extra ticks must not retry it.
	for i := 0; i < 5; i++ {
		w.DrainOnce(context.Background())
	}

	stA, ok := q.Status(idA)
	if !ok || stA.State != StateFailed || stA.Attempts != 3 {
		t.Fatalf("A: got %+v ok=%v, want failed after 3 attempts", stA, ok)
	}
	if stA.Reason == "" {
		t.Fatal("terminal failure must carry a reason")
	}

	// B proceeds once A is dropped.
	stB, ok := q.Status(idB)
	if !ok || stB.State != StateConfirmed {
		t.Fatalf("B: got %+v ok=%v, want confirmed", stB, ok)
	}

	failures := 0
	for _, st := range terminal {
		if st.State == StateFailed {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("terminal failure notification fired %d times, want exactly 1", failures)
	}
	if sub.failures["A"] != 96 {
		t.Fatalf("A was attempted %d times, want 3", 99-sub.failures["A"])
	}
}

func TestStatus_PendingPosition(t *testing.T) {
	q := New()
	idA, posA := q.Enqueue(Payload{CustomerName: "A"})
	idB, posB := q.Enqueue(Payload{CustomerName: "B"})

	if posA != 1 || posB != 2 {
		t.Fatalf("enqueue positions %d,%d want 1,2", posA, posB)
	}
	st, ok := q.Status(idB)
	if !ok || st.State != StatePending || st.Position != 2 {
		t.Fatalf("B pending status %+v ok=%v", st, ok)
	}
	if _, ok := q.Status(idA + "-nope"); ok {
		t.Fatal("unknown id must not resolve")
	}
}

func TestResultEviction(t *testing.T) {
	q := New()
	q.resultCap = 2
	sub := &flakySubmitter{}
	w := NewWorker(q, sub.submit, nil, testLogger(), WorkerConfig{})

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := q.Enqueue(Payload{CustomerName: fmt.Sprintf("c%d", i)})
		ids = append(ids, id)
		w.DrainOnce(context.Background())
	}

	if _, ok := q.Status(ids[0]); ok {
		t.Fatal("oldest result should have been evicted")
	}
	for _, id := range ids[1:] {
		if _, ok := q.Status(id); !ok {
			t.Fatalf("result %s should still be retained", id)
		}
	}
}

func TestEmptyQueueDrainIsNoop(t *testing.T) {
	q := New()
	called := false
	w := NewWorker(q, func(context.Context, Payload) (string, error) {
		called = true
		return "", nil
	}, nil, testLogger(), WorkerConfig{})

	w.DrainOnce(context.Background())
	if called {
		t.Fatal("submitter must not run on an empty queue")
	}
}

// Status polling races the worker's attempt counting; both must go through
// the queue lock. Run with the race detector to verify.
func TestStatus_SafeWhileDraining(t *testing.T) {
	const drains = 200

	q := New()
	id, _ := q.Enqueue(Payload{CustomerName: "A"})
	w := NewWorker(q, func(context.Context, Payload) (string, error) {
		return "", errors.New("store unavailable")
	}, nil, testLogger(), WorkerConfig{MaxAttempts: drains + 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < drains; i++ {
			w.DrainOnce(context.Background())
		}
	}()

	for polling := true; polling; {
		select {
		case <-done:
			polling = false
		default:
			if st, ok := q.Status(id); ok && st.Attempts > drains {
				t.Errorf("attempts overshot: %d", st.Attempts)
				polling = false
			}
		}
	}
	<-done

	st, ok := q.Status(id)
	if !ok || st.State != StatePending || st.Attempts != drains {
		t.Fatalf("got %+v ok=%v, want pending after %d attempts", st, ok, drains)
	}
}
