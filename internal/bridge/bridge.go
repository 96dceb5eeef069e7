// Package bridge routes inbound chat-platform traffic: exact-match command
// dispatch, active-wizard delegation, and finally relay evaluation. It is
// the only layer that decides who handles a message.
package bridge

import (
	"context"
	"log"
	"strings"

	"github.com/craftlink/craftlink/internal/config"
	"github.com/craftlink/craftlink/internal/presence"
	"github.com/craftlink/craftlink/internal/relay"
	"github.com/craftlink/craftlink/internal/store"
	"github.com/craftlink/craftlink/internal/telegram"
	"github.com/craftlink/craftlink/internal/wizard"
)

// Flows are the wizard starters the command table launches.
type Flows struct {
	Registration *wizard.Registration
	Link         *wizard.Link
	ServerAdd    *wizard.ServerAdd
	AdminAdd     *wizard.AdminAdd
	RankGroupAdd *wizard.RankGroupAdd
	GroupSet     *wizard.GroupSet
	TimeAdd      *wizard.TimeAdd
}

type command struct {
	adminOnly bool
	run       func(ctx context.Context, b *Bridge, msg *telegram.Message, args, lang string, reply func(string))
}

type Bridge struct {
	cfg      *config.Config
	chat     *telegram.Client
	store    *store.Store
	engine   *wizard.Engine
	relay    *relay.Relay
	poller   *presence.Poller
	flows    Flows
	commands map[string]command
}

func New(cfg *config.Config, chat *telegram.Client, st *store.Store, engine *wizard.Engine, rl *relay.Relay, poller *presence.Poller, flows Flows) *Bridge {
	b := &Bridge{
		cfg:    cfg,
		chat:   chat,
		store:  st,
		engine: engine,
		relay:  rl,
		poller: poller,
		flows:  flows,
	}
	// The dispatch table is built once; exact keys only, no prefix routing.
	b.commands = map[string]command{
		"/start":     {run: cmdStart},
		"/help":      {run: cmdHelp},
		"/register":  {run: cmdRegister},
		"/cancel":    {run: cmdCancel},
		"/online":    {run: cmdOnline},
		"/lang":      {run: cmdLang},
		"/link":      {adminOnly: true, run: cmdLink},
		"/addserver": {adminOnly: true, run: cmdAddServer},
		"/addadmin":  {adminOnly: true, run: cmdAddAdmin},
		"/addgroup":  {adminOnly: true, run: cmdAddGroup},
		"/setgroup":  {adminOnly: true, run: cmdSetGroup},
		"/addtime":   {adminOnly: true, run: cmdAddTime},
	}
	return b
}

// Run consumes the update stream until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for update := range b.chat.Updates(ctx) {
		b.HandleUpdate(ctx, update)
	}
}

// HandleUpdate routes one update. Commands win, then an in-progress wizard
// may consume the message, and only then is it a relay candidate.
func (b *Bridge) HandleUpdate(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot || msg.Text == "" {
		return
	}

	reply := b.replyFunc(ctx, msg)

	if strings.HasPrefix(msg.Text, "/") {
		b.handleCommand(ctx, msg, reply)
		return
	}

	if b.engine.HandleMessage(ctx, msg.From.ID, msg.Text, reply) {
		return
	}

	if b.isBridgeMessage(msg) {
		b.relay.HandleChatMessage(ctx, msg)
	}
}

func (b *Bridge) handleCommand(ctx context.Context, msg *telegram.Message, reply func(string)) {
	name, args := splitCommand(msg.Text)
	lang := b.store.UserLanguage(msg.From.ID)

	cmd, ok := b.commands[name]
	if !ok {
		// Unknown commands in the group chat are somebody else's bot.
		if msg.Chat.Type == "private" {
			reply(tr(lang, "unknown"))
		}
		return
	}
	if cmd.adminOnly {
		if _, isAdmin := b.store.AdminLevel(msg.From.ID); !isAdmin {
			reply(tr(lang, "admins_only"))
			return
		}
	}
	cmd.run(ctx, b, msg, args, lang, reply)
}

// splitCommand separates "/cmd@botname arg1 arg2" into "/cmd" and the raw
// argument string.
func splitCommand(text string) (name, args string) {
	name = text
	if idx := strings.IndexByte(text, ' '); idx >= 0 {
		name, args = text[:idx], strings.TrimSpace(text[idx+1:])
	}
	if idx := strings.IndexByte(name, '@'); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToLower(name), args
}

func (b *Bridge) isBridgeMessage(m *telegram.Message) bool {
	if m.Chat.ID != b.cfg.BridgeChatID {
		return false
	}
	return b.cfg.BridgeTopic == 0 || m.MessageThreadID == b.cfg.BridgeTopic
}

func (b *Bridge) replyFunc(ctx context.Context, m *telegram.Message) func(string) {
	return func(text string) {
		_, err := b.chat.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:           m.Chat.ID,
			Text:             text,
			MessageThreadID:  m.MessageThreadID,
			ReplyToMessageID: m.MessageID,
		})
		if err != nil {
			log.Printf("bridge: reply: %v", err)
		}
	}
}

func cmdStart(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	reply(tr(lang, "start"))
}

func cmdHelp(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	text := tr(lang, "help")
	if _, isAdmin := b.store.AdminLevel(m.From.ID); isAdmin {
		text += tr(lang, "help_admin")
	}
	reply(text)
}

func cmdRegister(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	if err := b.flows.Registration.Start(b.engine, m.From.ID, reply); err != nil {
		log.Printf("bridge: start registration: %v", err)
	}
}

func cmdCancel(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	existed, err := b.engine.Cancel(m.From.ID)
	if err != nil {
		log.Printf("bridge: cancel for %d: %v", m.From.ID, err)
		return
	}
	if existed {
		reply(tr(lang, "cancelled"))
	} else {
		reply(tr(lang, "no_wizard"))
	}
}

func cmdOnline(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	b.poller.ForceRefresh()
	reply(tr(lang, "refreshing"))
}

func cmdLang(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	choice := strings.ToLower(strings.TrimSpace(args))
	if _, ok := messages[choice]; !ok {
		reply(tr(lang, "lang_usage"))
		return
	}
	if err := b.store.SetUserLanguage(m.From.ID, choice); err != nil {
		log.Printf("bridge: set language for %d: %v", m.From.ID, err)
		return
	}
	reply(tr(choice, "lang_set"))
}

func cmdLink(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	if err := b.flows.Link.Start(b.engine, m.From.ID, reply); err != nil {
		log.Printf("bridge: start link: %v", err)
	}
}

func cmdAddServer(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	if err := b.flows.ServerAdd.Start(b.engine, m.From.ID, reply); err != nil {
		log.Printf("bridge: start server add: %v", err)
	}
}

func cmdAddAdmin(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	if err := b.flows.AdminAdd.Start(b.engine, m.From.ID, reply); err != nil {
		log.Printf("bridge: start admin add: %v", err)
	}
}

func cmdAddGroup(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	if err := b.flows.RankGroupAdd.Start(b.engine, m.From.ID, reply); err != nil {
		log.Printf("bridge: start rank group add: %v", err)
	}
}

func cmdSetGroup(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	if err := b.flows.GroupSet.Start(b.engine, m.From.ID, reply); err != nil {
		log.Printf("bridge: start group set: %v", err)
	}
}

func cmdAddTime(ctx context.Context, b *Bridge, m *telegram.Message, args, lang string, reply func(string)) {
	if err := b.flows.TimeAdd.Start(b.engine, m.From.ID, reply); err != nil {
		log.Printf("bridge: start time add: %v", err)
	}
}
