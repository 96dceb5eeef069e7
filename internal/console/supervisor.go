package console

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// State is the supervisor's connection state. Exactly one instance exists
// per process, owned and mutated only by the Supervisor.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	PermanentlyFailed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case PermanentlyFailed:
		return "permanently_failed"
	default:
		return "unknown"
	}
}

// Session is what subscribers receive: the live console handle, or nil on
// disconnect. *Conn satisfies it; tests substitute fakes.
type Session interface {
	Send(ctx context.Context, command string) (string, error)
	Close() error
}

// Alerter delivers the one-time critical notification when credentials are
// rejected. Wired to a Telegram send at startup.
type Alerter interface {
	Alert(text string)
}

// DialFunc constructs a new console session. Injectable for tests; the
// default dials the real websocket console.
type DialFunc func(ctx context.Context, onClosed func(err error)) (Session, error)

// Supervisor owns the console connection lifecycle: fixed-delay reconnects
// on transient failures, a permanent stop plus operator alert on
// authentication rejection, and synchronous in-order state notifications.
type Supervisor struct {
	retryDelay time.Duration
	dial       DialFunc
	alerter    Alerter

	mu         sync.Mutex
	state      State
	conn       Session
	generation int // only callbacks from the newest connection are trusted
	permFailed bool
	alerted    bool
	retryTimer *time.Timer
	subs       []func(Session)
}

func NewSupervisor(addr, password string, retryDelay time.Duration, alerter Alerter) *Supervisor {
	s := &Supervisor{
		retryDelay: retryDelay,
		alerter:    alerter,
	}
	s.dial = func(ctx context.Context, onClosed func(err error)) (Session, error) {
		return Dial(ctx, addr, password, onClosed)
	}
	return s
}

// NewSupervisorWithDial is the test seam: identical to NewSupervisor but
// with the dialer supplied by the caller.
func NewSupervisorWithDial(dial DialFunc, retryDelay time.Duration, alerter Alerter) *Supervisor {
	return &Supervisor{retryDelay: retryDelay, dial: dial, alerter: alerter}
}

// Subscribe registers a state-change callback. Callbacks run synchronously
// in transition order and receive the live session or nil; they must not
// call back into the Supervisor.
func (s *Supervisor) Subscribe(fn func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Start begins (or restarts) the attempt cycle. Idempotent: a pending
// retry timer is cancelled and the permanent-failure flag reset, so an
// operator restart after fixing credentials resumes attempts. A live
// connection from a previous cycle is closed first; at most one
// connection object exists at a time.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.permFailed = false
	s.alerted = false
	s.generation++ // invalidate the close callback of the connection below
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	go s.attempt()
}

// Current returns the live session, or nil when disconnected.
func (s *Supervisor) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) attempt() {
	s.mu.Lock()
	if s.permFailed {
		s.mu.Unlock()
		return
	}
	s.state = Connecting
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := s.dial(ctx, func(err error) { s.handleClosed(gen, err) })

	s.mu.Lock()
	if gen != s.generation {
		// A newer Start superseded this attempt while it was dialing.
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		s.conn = nil
		if errors.Is(err, ErrAuthRejected) {
			s.state = PermanentlyFailed
			s.permFailed = true
			alert := !s.alerted
			s.alerted = true
			subs := s.subscribers()
			s.mu.Unlock()

			log.Printf("console: %v; retries halted until restart", err)
			if alert && s.alerter != nil {
				s.alerter.Alert("Console authentication rejected. Check the console password and restart the bridge.")
			}
			s.notify(subs, nil)
			return
		}

		s.state = Disconnected
		subs := s.subscribers()
		s.scheduleRetryLocked()
		s.mu.Unlock()

		log.Printf("console: connect failed: %v (retrying in %s)", err, s.retryDelay)
		s.notify(subs, nil)
		return
	}

	s.conn = conn
	s.state = Connected
	subs := s.subscribers()
	s.mu.Unlock()

	log.Println("console: connected")
	s.notify(subs, conn)
}

func (s *Supervisor) handleClosed(gen int, err error) {
	s.mu.Lock()
	if gen != s.generation {
		// Stale callback from a superseded connection.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = Disconnected
	subs := s.subscribers()
	retry := !s.permFailed
	if retry {
		s.scheduleRetryLocked()
	}
	s.mu.Unlock()

	log.Printf("console: connection closed: %v", err)
	s.notify(subs, nil)
}

// scheduleRetryLocked arms the fixed-delay retry timer. Caller holds mu.
func (s *Supervisor) scheduleRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = time.AfterFunc(s.retryDelay, s.attempt)
}

func (s *Supervisor) subscribers() []func(Session) {
	out := make([]func(Session), len(s.subs))
	copy(out, s.subs)
	return out
}

func (s *Supervisor) notify(subs []func(Session), conn Session) {
	for _, fn := range subs {
		fn(conn)
	}
}

// Stop cancels any pending retry and closes the live connection. Used on
// shutdown only.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.permFailed = true // suppress reconnects triggered by the close below
	s.generation++
	conn := s.conn
	s.conn = nil
	s.state = Disconnected
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
