// Package wizard is the persisted multi-step conversation machine. Every
// interactive flow (registration, server add, admin add, rank-group add,
// time add, identity linking) is a named wizard type registered against
// the engine: an ordered set of step tags with a handler per step.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/craftlink/craftlink/internal/store"
)

var ErrInvalidTransition = errors.New("wizard: invalid transition")

// Result tells the engine what to do with the actor's state after a step
// handler returns.
type Result int

const (
	// Stay keeps the current step untouched: a recoverable validation
	// failure where the handler has already re-prompted.
	Stay Result = iota
	// Continue persists the Step and Data the handler left on the Flow.
	Continue
	// Finish deletes the state: the flow reached a terminal outcome.
	Finish
)

// Flow is the mutable view a handler works on. The engine persists exactly
// what the handler leaves in Step and Data; there is no hidden merging.
type Flow struct {
	ActorID int64
	Type    string
	Step    string
	Data    map[string]string
	Input   string
	Reply   func(text string)
}

// Handler processes one inbound message for one step.
type Handler func(ctx context.Context, f *Flow) (Result, error)

// States is the persistence surface the engine needs.
type States interface {
	GetWizard(actorID int64) (*store.WizardState, error)
	PutWizard(ws *store.WizardState) error
	DeleteWizard(actorID int64) error
}

type Engine struct {
	store   States
	wizards map[string]map[string]Handler

	mu   sync.Mutex
	busy map[int64]bool // per-actor advisory lock, in-memory on purpose
}

func NewEngine(st States) *Engine {
	return &Engine{
		store:   st,
		wizards: map[string]map[string]Handler{},
		busy:    map[int64]bool{},
	}
}

// RegisterWizard installs the step table for a wizard type. Wiring-time
// only; not safe once messages flow.
func (e *Engine) RegisterWizard(wizardType string, steps map[string]Handler) {
	e.wizards[wizardType] = steps
}

// Start creates state for the actor, silently discarding any flow already
// in progress (at most one wizard per actor).
func (e *Engine) Start(actorID int64, wizardType, initialStep string, data map[string]string) error {
	if _, ok := e.wizards[wizardType]; !ok {
		return fmt.Errorf("wizard: unknown type %q", wizardType)
	}
	return e.store.PutWizard(&store.WizardState{
		ActorID:    actorID,
		WizardType: wizardType,
		Step:       initialStep,
		Data:       encodeData(data),
	})
}

// Advance persists a new step and data for an existing flow of the same
// type. Missing state or a type mismatch is an invalid transition.
func (e *Engine) Advance(actorID int64, wizardType, nextStep string, data map[string]string) error {
	current, err := e.store.GetWizard(actorID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidTransition
	}
	if err != nil {
		return err
	}
	if current.WizardType != wizardType {
		return ErrInvalidTransition
	}
	return e.store.PutWizard(&store.WizardState{
		ActorID:    actorID,
		WizardType: wizardType,
		Step:       nextStep,
		Data:       encodeData(data),
	})
}

// Get returns the actor's flow state, or nil without error when none.
func (e *Engine) Get(actorID int64) (*store.WizardState, error) {
	ws, err := e.store.GetWizard(actorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return ws, err
}

// Cancel deletes the actor's state and reports whether one existed.
func (e *Engine) Cancel(actorID int64) (bool, error) {
	ws, err := e.Get(actorID)
	if err != nil {
		return false, err
	}
	if ws == nil {
		return false, nil
	}
	return true, e.store.DeleteWizard(actorID)
}

// HandleMessage feeds one inbound message to the actor's active wizard and
// reports whether it was consumed. Messages for actors with no active flow
// are not consumed; the caller may then treat them as relay candidates.
//
// A per-actor advisory lock serializes wizard processing: step handlers do
// external I/O that must not run twice if the user double-sends. The lock
// never outlives this call, so a panicking handler cannot wedge the actor.
func (e *Engine) HandleMessage(ctx context.Context, actorID int64, text string, reply func(string)) bool {
	ws, err := e.Get(actorID)
	if err != nil {
		log.Printf("wizard: load state for %d: %v", actorID, err)
		return false
	}
	if ws == nil {
		return false
	}

	if !e.tryLock(actorID) {
		log.Printf("wizard: actor %d sent a message while the previous one is still processing", actorID)
		return true
	}
	defer e.unlock(actorID)

	e.dispatch(ctx, ws, text, reply)
	return true
}

func (e *Engine) dispatch(ctx context.Context, ws *store.WizardState, text string, reply func(string)) {
	// No error may escape one actor's flow into the process. Unexpected
	// failures clear the state so the actor is never stuck mid-wizard.
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("wizard: panic in %s/%s for actor %d: %v\n%s",
				ws.WizardType, ws.Step, ws.ActorID, rec, debug.Stack())
			e.store.DeleteWizard(ws.ActorID)
			reply("Something went wrong. The current operation was cancelled.")
		}
	}()

	steps, ok := e.wizards[ws.WizardType]
	handler := steps[ws.Step]
	if !ok || handler == nil {
		log.Printf("wizard: no handler for %s/%s, clearing state for actor %d", ws.WizardType, ws.Step, ws.ActorID)
		e.store.DeleteWizard(ws.ActorID)
		reply("Something went wrong. The current operation was cancelled.")
		return
	}

	flow := &Flow{
		ActorID: ws.ActorID,
		Type:    ws.WizardType,
		Step:    ws.Step,
		Data:    decodeData(ws.Data),
		Input:   text,
		Reply:   reply,
	}

	result, err := handler(ctx, flow)
	if err != nil {
		e.store.DeleteWizard(ws.ActorID)
		if errors.Is(err, store.ErrConflict) {
			reply("That already exists. The current operation was cancelled.")
			return
		}
		log.Printf("wizard: %s/%s for actor %d: %v", ws.WizardType, ws.Step, ws.ActorID, err)
		reply("Something went wrong. The current operation was cancelled.")
		return
	}

	switch result {
	case Stay:
		// Handler re-prompted; state untouched.
	case Continue:
		if err := e.Advance(ws.ActorID, ws.WizardType, flow.Step, flow.Data); err != nil {
			log.Printf("wizard: advance %s/%s for actor %d: %v", ws.WizardType, flow.Step, ws.ActorID, err)
			e.store.DeleteWizard(ws.ActorID)
			reply("Something went wrong. The current operation was cancelled.")
		}
	case Finish:
		e.store.DeleteWizard(ws.ActorID)
	}
}

func (e *Engine) tryLock(actorID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[actorID] {
		return false
	}
	e.busy[actorID] = true
	return true
}

func (e *Engine) unlock(actorID int64) {
	e.mu.Lock()
	delete(e.busy, actorID)
	e.mu.Unlock()
}

func encodeData(data map[string]string) string {
	if data == nil {
		data = map[string]string{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeData(raw string) map[string]string {
	data := map[string]string{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			log.Printf("wizard: corrupt step data %q: %v", raw, err)
		}
	}
	return data
}
