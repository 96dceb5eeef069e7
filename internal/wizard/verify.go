package wizard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/craftlink/craftlink/internal/gamelog"
	"github.com/craftlink/craftlink/internal/store"
	"github.com/craftlink/craftlink/internal/telegram"
)

// Notifier sends a message to an actor's private chat.
type Notifier interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
}

// Verifier completes registrations off in-game verify commands surfaced by
// the log classifier.
type Verifier struct {
	store *store.Store
	chat  Notifier
}

func NewVerifier(st *store.Store, chat Notifier) *Verifier {
	return &Verifier{store: st, chat: chat}
}

// HandleEvent approves the pending registration matching the username, if
// any, and notifies the actor. A verify with no pending registration is
// normal noise (players poking at commands) and only logged.
func (v *Verifier) HandleEvent(ctx context.Context, ev gamelog.VerifyRequest) {
	reg, err := v.store.PendingRegistrationByUsername(ev.Username)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("verify: no pending registration for %s", ev.Username)
		return
	}
	if err != nil {
		log.Printf("verify: lookup %s: %v", ev.Username, err)
		return
	}

	if err := v.store.ApproveRegistration(reg); err != nil {
		log.Printf("verify: approve %s: %v", ev.Username, err)
		return
	}
	log.Printf("verify: approved %s for actor %d", reg.Username, reg.ActorID)

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = v.chat.SendMessage(sendCtx, telegram.SendMessageParams{
		ChatID: reg.ActorID,
		Text:   fmt.Sprintf("Your account is now linked to %s. You can chat with the server.", reg.Username),
	})
	if err != nil {
		log.Printf("verify: notify actor %d: %v", reg.ActorID, err)
	}
}

// Link is the admin flow for binding a chat actor to a game identity by
// hand, bypassing registration.
type Link struct {
	store *store.Store
}

func NewLink(st *store.Store) *Link {
	return &Link{store: st}
}

func (l *Link) Attach(e *Engine) {
	e.RegisterWizard("link", map[string]Handler{
		"actor":    l.stepActor,
		"username": l.stepUsername,
	})
}

func (l *Link) Start(e *Engine, actorID int64, reply func(string)) error {
	if err := e.Start(actorID, "link", "actor", nil); err != nil {
		return err
	}
	reply("Which chat user id should be linked?")
	return nil
}

func (l *Link) stepActor(ctx context.Context, f *Flow) (Result, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(f.Input), 10, 64)
	if err != nil || id <= 0 {
		f.Reply("Please send a numeric chat user id.")
		return Stay, nil
	}
	f.Data["target"] = strconv.FormatInt(id, 10)
	f.Step = "username"
	f.Reply("Which game username?")
	return Continue, nil
}

func (l *Link) stepUsername(ctx context.Context, f *Flow) (Result, error) {
	username := strings.TrimSpace(f.Input)
	if !gamelog.ValidUsername(username) {
		f.Reply("That doesn't look like a valid username. Try again.")
		return Stay, nil
	}
	target, _ := strconv.ParseInt(f.Data["target"], 10, 64)
	if err := l.store.LinkIdentity(target, username); err != nil {
		return Finish, err
	}
	f.Reply(fmt.Sprintf("Linked user %d to %s.", target, username))
	return Finish, nil
}
