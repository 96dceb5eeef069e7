package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/craftlink/craftlink/internal/gamelog"
	"github.com/craftlink/craftlink/internal/store"
)

// Registration is the onboarding flow: username, age, confirmation, then a
// pending registration record that in-game verification later approves.
type Registration struct {
	store *store.Store
}

func NewRegistration(st *store.Store) *Registration {
	return &Registration{store: st}
}

func (r *Registration) Attach(e *Engine) {
	e.RegisterWizard("register", map[string]Handler{
		"username": r.stepUsername,
		"age":      r.stepAge,
		"confirm":  r.stepConfirm,
	})
}

func (r *Registration) Start(e *Engine, actorID int64, reply func(string)) error {
	if _, err := r.store.GameIdentity(actorID); err == nil {
		reply("You are already registered.")
		return nil
	}
	if err := e.Start(actorID, "register", "username", nil); err != nil {
		return err
	}
	reply("What is your in-game username? (3-16 letters, digits or underscores)")
	return nil
}

func (r *Registration) stepUsername(ctx context.Context, f *Flow) (Result, error) {
	username := strings.TrimSpace(f.Input)
	if !gamelog.ValidUsername(username) {
		f.Reply("That doesn't look like a valid username. It must be 3-16 letters, digits or underscores. Try again.")
		return Stay, nil
	}
	f.Data["username"] = username
	f.Step = "age"
	f.Reply("How old are you?")
	return Continue, nil
}

func (r *Registration) stepAge(ctx context.Context, f *Flow) (Result, error) {
	age, err := strconv.Atoi(strings.TrimSpace(f.Input))
	if err != nil || age < 13 || age > 99 {
		f.Reply("Please enter your age as a number between 13 and 99.")
		return Stay, nil
	}
	f.Data["age"] = strconv.Itoa(age)
	f.Step = "confirm"
	f.Reply(fmt.Sprintf("Register as %s, age %d? (yes/no)", f.Data["username"], age))
	return Continue, nil
}

func (r *Registration) stepConfirm(ctx context.Context, f *Flow) (Result, error) {
	switch strings.ToLower(strings.TrimSpace(f.Input)) {
	case "yes", "y":
		age, _ := strconv.Atoi(f.Data["age"])
		if _, err := r.store.CreateRegistration(f.ActorID, f.Data["username"], age); err != nil {
			return Finish, err
		}
		f.Reply(fmt.Sprintf("Registration submitted. Join the server as %s and run /verify in game chat to finish.", f.Data["username"]))
		return Finish, nil
	case "no", "n":
		f.Reply("Registration cancelled.")
		return Finish, nil
	default:
		f.Reply("Please answer yes or no.")
		return Stay, nil
	}
}
