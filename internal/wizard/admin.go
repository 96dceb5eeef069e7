package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/craftlink/craftlink/internal/console"
	"github.com/craftlink/craftlink/internal/gamelog"
	"github.com/craftlink/craftlink/internal/store"
)

// Admin-only flows: server records, admin grants, rank groups and temp
// rank time. Access control happens at the command dispatch layer; the
// flows themselves assume the caller was allowed to start them.

// ServerAdd collects a console endpoint record.
type ServerAdd struct {
	store *store.Store
}

func NewServerAdd(st *store.Store) *ServerAdd {
	return &ServerAdd{store: st}
}

func (s *ServerAdd) Attach(e *Engine) {
	e.RegisterWizard("server_add", map[string]Handler{
		"name":     s.stepName,
		"host":     s.stepHost,
		"port":     s.stepPort,
		"password": s.stepPassword,
	})
}

func (s *ServerAdd) Start(e *Engine, actorID int64, reply func(string)) error {
	if err := e.Start(actorID, "server_add", "name", nil); err != nil {
		return err
	}
	reply("What should the server be called?")
	return nil
}

func (s *ServerAdd) stepName(ctx context.Context, f *Flow) (Result, error) {
	name := strings.TrimSpace(f.Input)
	if name == "" || len(name) > 64 {
		f.Reply("Please send a name up to 64 characters.")
		return Stay, nil
	}
	f.Data["name"] = name
	f.Step = "host"
	f.Reply("Console host (hostname or IP)?")
	return Continue, nil
}

func (s *ServerAdd) stepHost(ctx context.Context, f *Flow) (Result, error) {
	host := strings.TrimSpace(f.Input)
	if host == "" || strings.ContainsAny(host, " /") {
		f.Reply("That doesn't look like a hostname. Try again.")
		return Stay, nil
	}
	f.Data["host"] = host
	f.Step = "port"
	f.Reply("Console port?")
	return Continue, nil
}

func (s *ServerAdd) stepPort(ctx context.Context, f *Flow) (Result, error) {
	port, err := strconv.Atoi(strings.TrimSpace(f.Input))
	if err != nil || port < 1 || port > 65535 {
		f.Reply("Please send a port between 1 and 65535.")
		return Stay, nil
	}
	f.Data["port"] = strconv.Itoa(port)
	f.Step = "password"
	f.Reply("Console password? (send - for none)")
	return Continue, nil
}

func (s *ServerAdd) stepPassword(ctx context.Context, f *Flow) (Result, error) {
	pass := strings.TrimSpace(f.Input)
	if pass == "-" {
		pass = ""
	}
	port, _ := strconv.Atoi(f.Data["port"])
	srv, err := s.store.AddServer(f.Data["name"], f.Data["host"], port, pass)
	if err != nil {
		return Finish, err
	}
	f.Reply(fmt.Sprintf("Server %s added (%s:%d).", srv.Name, srv.Host, srv.Port))
	return Finish, nil
}

// AdminAdd grants bridge admin rights to a chat actor.
type AdminAdd struct {
	store *store.Store
}

func NewAdminAdd(st *store.Store) *AdminAdd {
	return &AdminAdd{store: st}
}

func (a *AdminAdd) Attach(e *Engine) {
	e.RegisterWizard("admin_add", map[string]Handler{
		"actor": a.stepActor,
		"level": a.stepLevel,
	})
}

func (a *AdminAdd) Start(e *Engine, actorID int64, reply func(string)) error {
	if err := e.Start(actorID, "admin_add", "actor", nil); err != nil {
		return err
	}
	reply("Which chat user id should become an admin?")
	return nil
}

func (a *AdminAdd) stepActor(ctx context.Context, f *Flow) (Result, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(f.Input), 10, 64)
	if err != nil || id <= 0 {
		f.Reply("Please send a numeric chat user id.")
		return Stay, nil
	}
	f.Data["target"] = strconv.FormatInt(id, 10)
	f.Step = "level"
	f.Reply("Admin level? (1-3)")
	return Continue, nil
}

func (a *AdminAdd) stepLevel(ctx context.Context, f *Flow) (Result, error) {
	level, err := strconv.Atoi(strings.TrimSpace(f.Input))
	if err != nil || level < 1 || level > 3 {
		f.Reply("Level must be 1, 2 or 3.")
		return Stay, nil
	}
	target, _ := strconv.ParseInt(f.Data["target"], 10, 64)
	if err := a.store.AddAdmin(target, level); err != nil {
		return Finish, err
	}
	f.Reply(fmt.Sprintf("User %d is now a level %d admin.", target, level))
	return Finish, nil
}

// RankGroupAdd defines a rank group; cooldown-exempt groups make up the
// unlimited-chat set checked by the relay.
type RankGroupAdd struct {
	store *store.Store
}

func NewRankGroupAdd(st *store.Store) *RankGroupAdd {
	return &RankGroupAdd{store: st}
}

func (r *RankGroupAdd) Attach(e *Engine) {
	e.RegisterWizard("rankgroup_add", map[string]Handler{
		"name":      r.stepName,
		"unlimited": r.stepUnlimited,
	})
}

func (r *RankGroupAdd) Start(e *Engine, actorID int64, reply func(string)) error {
	if err := e.Start(actorID, "rankgroup_add", "name", nil); err != nil {
		return err
	}
	reply("Rank group name?")
	return nil
}

func (r *RankGroupAdd) stepName(ctx context.Context, f *Flow) (Result, error) {
	name := strings.ToLower(strings.TrimSpace(f.Input))
	if name == "" || len(name) > 32 {
		f.Reply("Please send a group name up to 32 characters.")
		return Stay, nil
	}
	f.Data["name"] = name
	f.Step = "unlimited"
	f.Reply("Should this group be exempt from the chat cooldown? (yes/no)")
	return Continue, nil
}

func (r *RankGroupAdd) stepUnlimited(ctx context.Context, f *Flow) (Result, error) {
	var unlimited bool
	switch strings.ToLower(strings.TrimSpace(f.Input)) {
	case "yes", "y":
		unlimited = true
	case "no", "n":
		unlimited = false
	default:
		f.Reply("Please answer yes or no.")
		return Stay, nil
	}
	if err := r.store.AddRankGroup(f.Data["name"], unlimited); err != nil {
		return Finish, err
	}
	f.Reply(fmt.Sprintf("Rank group %s added.", f.Data["name"]))
	return Finish, nil
}

// GroupSet puts a linked player into a rank group. Membership in a
// cooldown-exempt group is what grants unlimited chat.
type GroupSet struct {
	store *store.Store
}

func NewGroupSet(st *store.Store) *GroupSet {
	return &GroupSet{store: st}
}

func (g *GroupSet) Attach(e *Engine) {
	e.RegisterWizard("group_set", map[string]Handler{
		"actor": g.stepActor,
		"group": g.stepGroup,
	})
}

func (g *GroupSet) Start(e *Engine, actorID int64, reply func(string)) error {
	if err := e.Start(actorID, "group_set", "actor", nil); err != nil {
		return err
	}
	reply("Which chat user id should change groups?")
	return nil
}

func (g *GroupSet) stepActor(ctx context.Context, f *Flow) (Result, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(f.Input), 10, 64)
	if err != nil || id <= 0 {
		f.Reply("Please send a numeric chat user id.")
		return Stay, nil
	}
	if _, err := g.store.GameIdentity(id); errors.Is(err, store.ErrNotFound) {
		f.Reply("That user has no linked game identity. Link them first.")
		return Stay, nil
	} else if err != nil {
		return Finish, err
	}
	f.Data["target"] = strconv.FormatInt(id, 10)
	f.Step = "group"
	f.Reply("Which rank group? (send - to clear)")
	return Continue, nil
}

func (g *GroupSet) stepGroup(ctx context.Context, f *Flow) (Result, error) {
	group := strings.ToLower(strings.TrimSpace(f.Input))
	if group == "-" {
		group = ""
	}
	if len(group) > 32 {
		f.Reply("Please send a group name up to 32 characters.")
		return Stay, nil
	}
	target, _ := strconv.ParseInt(f.Data["target"], 10, 64)
	if err := g.store.SetRankGroup(target, group); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			f.Reply("That user's identity link disappeared. Nothing was changed.")
			return Finish, nil
		}
		return Finish, err
	}
	if group == "" {
		f.Reply(fmt.Sprintf("User %d is no longer in any rank group.", target))
	} else {
		f.Reply(fmt.Sprintf("User %d is now in group %s.", target, group))
	}
	return Finish, nil
}

// ConsoleProvider exposes the supervisor's current session to flows that
// issue game commands.
type ConsoleProvider interface {
	Current() console.Session
}

// TimeAdd extends a player's temporary rank through a console command.
type TimeAdd struct {
	store   *store.Store
	console ConsoleProvider
}

func NewTimeAdd(st *store.Store, cp ConsoleProvider) *TimeAdd {
	return &TimeAdd{store: st, console: cp}
}

func (t *TimeAdd) Attach(e *Engine) {
	e.RegisterWizard("time_add", map[string]Handler{
		"username": t.stepUsername,
		"group":    t.stepGroup,
		"days":     t.stepDays,
	})
}

func (t *TimeAdd) Start(e *Engine, actorID int64, reply func(string)) error {
	if err := e.Start(actorID, "time_add", "username", nil); err != nil {
		return err
	}
	reply("Which game username gets the time?")
	return nil
}

func (t *TimeAdd) stepUsername(ctx context.Context, f *Flow) (Result, error) {
	username := strings.TrimSpace(f.Input)
	if !gamelog.ValidUsername(username) {
		f.Reply("That doesn't look like a valid username. Try again.")
		return Stay, nil
	}
	f.Data["username"] = username
	f.Step = "group"
	f.Reply("Which rank group?")
	return Continue, nil
}

func (t *TimeAdd) stepGroup(ctx context.Context, f *Flow) (Result, error) {
	group := strings.ToLower(strings.TrimSpace(f.Input))
	if group == "" || len(group) > 32 {
		f.Reply("Please send a group name up to 32 characters.")
		return Stay, nil
	}
	f.Data["group"] = group
	f.Step = "days"
	f.Reply("How many days? (1-365)")
	return Continue, nil
}

func (t *TimeAdd) stepDays(ctx context.Context, f *Flow) (Result, error) {
	days, err := strconv.Atoi(strings.TrimSpace(f.Input))
	if err != nil || days < 1 || days > 365 {
		f.Reply("Days must be between 1 and 365.")
		return Stay, nil
	}

	sess := t.console.Current()
	if sess == nil {
		f.Reply("The server console is offline right now. Try again later.")
		return Finish, nil
	}

	cmd := fmt.Sprintf("lp user %s parent addtemp %s %dd", f.Data["username"], f.Data["group"], days)
	if _, err := sess.Send(ctx, cmd); err != nil {
		return Finish, fmt.Errorf("time add command: %w", err)
	}
	f.Reply(fmt.Sprintf("Added %d days of %s to %s.", days, f.Data["group"], f.Data["username"]))
	return Finish, nil
}
