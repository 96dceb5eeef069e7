package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSession struct {
	onClosed func(err error)
	closed   atomic.Bool
}

func (f *fakeSession) Send(ctx context.Context, command string) (string, error) {
	return "", nil
}

func (f *fakeSession) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeAlerter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeAlerter) Alert(text string) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSupervisorStopsOnAuthRejection(t *testing.T) {
	const transientFailures = 3

	var attempts atomic.Int32
	dial := func(ctx context.Context, onClosed func(err error)) (Session, error) {
		n := attempts.Add(1)
		if n <= transientFailures {
			return nil, errors.New("connection refused")
		}
		return nil, fmt.Errorf("%w (HTTP 401)", ErrAuthRejected)
	}

	alerter := &fakeAlerter{}
	sup := NewSupervisorWithDial(dial, 5*time.Millisecond, alerter)
	sup.Start()

	// Long enough for many more retry intervals than attempts we expect.
	time.Sleep(300 * time.Millisecond)

	if got := attempts.Load(); got != transientFailures+1 {
		t.Errorf("attempts = %d, want %d", got, transientFailures+1)
	}
	if sup.State() != PermanentlyFailed {
		t.Errorf("state = %v, want PermanentlyFailed", sup.State())
	}
	if alerter.count() != 1 {
		t.Errorf("alerts = %d, want exactly 1", alerter.count())
	}
}

func TestSupervisorRetriesTransientErrorsForever(t *testing.T) {
	var attempts atomic.Int32
	dial := func(ctx context.Context, onClosed func(err error)) (Session, error) {
		attempts.Add(1)
		return nil, errors.New("host unreachable")
	}

	sup := NewSupervisorWithDial(dial, 5*time.Millisecond, nil)
	sup.Start()
	time.Sleep(100 * time.Millisecond)
	sup.Stop()

	if got := attempts.Load(); got < 5 {
		t.Errorf("attempts = %d, want several retries", got)
	}
	if sup.State() == PermanentlyFailed {
		t.Error("transient errors must not latch permanent failure")
	}
}

func TestSupervisorReconnectsAfterClose(t *testing.T) {
	var mu sync.Mutex
	var sessions []*fakeSession

	dial := func(ctx context.Context, onClosed func(err error)) (Session, error) {
		s := &fakeSession{onClosed: onClosed}
		mu.Lock()
		sessions = append(sessions, s)
		mu.Unlock()
		return s, nil
	}

	sup := NewSupervisorWithDial(dial, 5*time.Millisecond, nil)

	var notifications []bool // true = connected
	sup.Subscribe(func(s Session) {
		mu.Lock()
		notifications = append(notifications, s != nil)
		mu.Unlock()
	})

	sup.Start()
	waitFor(t, func() bool { return sup.State() == Connected })

	mu.Lock()
	first := sessions[0]
	mu.Unlock()
	first.onClosed(errors.New("read: connection reset"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sessions) >= 2 && sup.State() == Connected
	})

	mu.Lock()
	got := append([]bool(nil), notifications...)
	mu.Unlock()
	if len(got) < 3 {
		t.Fatalf("got %d notifications, want connected/nil/connected", len(got))
	}
	if !got[0] || got[1] || !got[2] {
		t.Errorf("notification order wrong: %v", got)
	}

	sup.Stop()
}

func TestSupervisorRestartClosesPreviousConnection(t *testing.T) {
	var mu sync.Mutex
	var sessions []*fakeSession

	dial := func(ctx context.Context, onClosed func(err error)) (Session, error) {
		s := &fakeSession{onClosed: onClosed}
		mu.Lock()
		sessions = append(sessions, s)
		mu.Unlock()
		return s, nil
	}

	sup := NewSupervisorWithDial(dial, 5*time.Millisecond, nil)
	sup.Start()
	waitFor(t, func() bool { return sup.State() == Connected })

	sup.Start()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sessions) >= 2
	})
	waitFor(t, func() bool { return sup.Current() != nil })

	mu.Lock()
	first, second := sessions[0], sessions[1]
	count := len(sessions)
	mu.Unlock()

	if count != 2 {
		t.Fatalf("sessions dialed = %d, want 2", count)
	}
	if !first.closed.Load() {
		t.Error("superseded connection left open after restart")
	}
	if second.closed.Load() {
		t.Error("restart closed the new connection")
	}
	if sup.Current() != Session(second) {
		t.Error("current session is not the newly dialed one")
	}

	sup.Stop()
}

func TestSupervisorIgnoresStaleCloseCallbacks(t *testing.T) {
	var mu sync.Mutex
	var sessions []*fakeSession

	dial := func(ctx context.Context, onClosed func(err error)) (Session, error) {
		s := &fakeSession{onClosed: onClosed}
		mu.Lock()
		sessions = append(sessions, s)
		mu.Unlock()
		return s, nil
	}

	sup := NewSupervisorWithDial(dial, 5*time.Millisecond, nil)
	sup.Start()
	waitFor(t, func() bool { return sup.State() == Connected })

	// Restarting supersedes the first connection. Its late close callback
	// must not disturb the new one.
	sup.Start()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sessions) >= 2
	})
	waitFor(t, func() bool { return sup.Current() != nil })

	mu.Lock()
	first := sessions[0]
	mu.Unlock()
	first.onClosed(errors.New("stale"))

	time.Sleep(20 * time.Millisecond)
	if sup.State() != Connected {
		t.Errorf("stale callback changed state to %v", sup.State())
	}

	sup.Stop()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
