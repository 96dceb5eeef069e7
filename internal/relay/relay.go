// Package relay moves chat between the chat platform and the game server
// in both directions, applying identity resolution, cooldown enforcement,
// sanitization and profanity redaction.
package relay

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/craftlink/craftlink/internal/console"
	"github.com/craftlink/craftlink/internal/gamelog"
	"github.com/craftlink/craftlink/internal/store"
	"github.com/craftlink/craftlink/internal/telegram"
)

const noticeTTL = 15 * time.Second

// Chat is the narrow slice of the Telegram client the relay needs.
type Chat interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	DeleteAfter(chatID int64, messageID int, delay time.Duration)
}

// Identities is the store surface consulted per inbound message. Results
// are never cached across messages; only the cooldown timestamp persists.
type Identities interface {
	GameIdentity(actorID int64) (*store.Identity, error)
	AdminLevel(actorID int64) (int, bool)
	UnlimitedGroups() (map[string]bool, error)
	LastSent(actorID int64) (int64, error)
	SetLastSent(actorID int64, ts int64) error
}

type Config struct {
	BridgeChatID    int64
	BridgeTopic     int
	RelayTag        string // e.g. "[TG]"
	CooldownSeconds int
}

type Relay struct {
	cfg       Config
	chat      Chat
	store     Identities
	profanity *ProfanityFilter

	mu   sync.Mutex
	sess console.Session

	now func() time.Time
}

func New(cfg Config, chat Chat, st Identities, profanity *ProfanityFilter) *Relay {
	if profanity == nil {
		profanity = &ProfanityFilter{}
	}
	return &Relay{cfg: cfg, chat: chat, store: st, profanity: profanity, now: time.Now}
}

// SetSession is the connection-supervisor subscriber: the relay keeps only
// the latest notified handle and never dials on its own.
func (r *Relay) SetSession(sess console.Session) {
	r.mu.Lock()
	r.sess = sess
	r.mu.Unlock()
}

func (r *Relay) session() console.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess
}

// HandleChatMessage relays one inbound chat-platform message to the game.
// Relay is best-effort: with no live console session the message is
// dropped with a warning, never queued.
func (r *Relay) HandleChatMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}
	actorID := msg.From.ID

	identity, err := r.store.GameIdentity(actorID)
	if errors.Is(err, store.ErrNotFound) {
		r.transientReply(ctx, msg, "You need to register before chatting with the server. Use /register.", noticeTTL)
		r.chat.DeleteAfter(msg.Chat.ID, msg.MessageID, noticeTTL)
		return
	}
	if err != nil {
		log.Printf("relay: identity lookup for %d: %v", actorID, err)
		return
	}

	if !r.cooldownExempt(actorID, identity) {
		last, err := r.store.LastSent(actorID)
		if err != nil {
			log.Printf("relay: cooldown read for %d: %v", actorID, err)
			return
		}
		now := r.now().Unix()
		if elapsed := now - last; elapsed < int64(r.cfg.CooldownSeconds) {
			remaining := time.Duration(int64(r.cfg.CooldownSeconds)-elapsed) * time.Second
			r.transientReply(ctx, msg, fmt.Sprintf("Slow down. You can chat again in %s.", FormatRemaining(remaining)), remaining)
			return
		}
		// Record before sending: a failed relay still consumes the window,
		// which bounds double-sends to the in-flight race only.
		if err := r.store.SetLastSent(actorID, now); err != nil {
			log.Printf("relay: cooldown write for %d: %v", actorID, err)
		}
	}

	command := BroadcastCommand(r.cfg.RelayTag, identity.Username, msg.Text)

	sess := r.session()
	if sess == nil {
		log.Printf("relay: dropping message from %s: console not connected", identity.Username)
		return
	}
	if _, err := sess.Send(ctx, command); err != nil {
		log.Printf("relay: broadcast failed: %v", err)
	}
}

func (r *Relay) cooldownExempt(actorID int64, identity *store.Identity) bool {
	if _, ok := r.store.AdminLevel(actorID); ok {
		return true
	}
	if identity.RankGroup == "" {
		return false
	}
	groups, err := r.store.UnlimitedGroups()
	if err != nil {
		log.Printf("relay: unlimited groups: %v", err)
		return false
	}
	return groups[identity.RankGroup]
}

// transientReply sends a self-deleting notice addressed as a reply.
func (r *Relay) transientReply(ctx context.Context, msg *telegram.Message, text string, ttl time.Duration) {
	notice, err := r.chat.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:           msg.Chat.ID,
		Text:             text,
		MessageThreadID:  msg.MessageThreadID,
		ReplyToMessageID: msg.MessageID,
	})
	if err != nil {
		log.Printf("relay: notice send: %v", err)
		return
	}
	r.chat.DeleteAfter(msg.Chat.ID, notice.MessageID, ttl)
}

// HandleGameEvent forwards classified log events to the bridge chat.
func (r *Relay) HandleGameEvent(ctx context.Context, ev gamelog.Event) {
	switch e := ev.(type) {
	case gamelog.ChatLine:
		r.forwardChatLine(ctx, e)
	case gamelog.AuctionAdded:
		r.send(ctx, fmt.Sprintf("🏷 <b>%s</b> listed x%d %s for %s coins",
			html.EscapeString(e.Seller), e.Qty, html.EscapeString(e.Item), e.Price))
	case gamelog.AuctionSold:
		r.send(ctx, fmt.Sprintf("💰 <b>%s</b> bought x%d %s from <b>%s</b> for %s coins",
			html.EscapeString(e.Buyer), e.Qty, html.EscapeString(e.Item), html.EscapeString(e.Seller), e.Price))
	}
}

func (r *Relay) forwardChatLine(ctx context.Context, line gamelog.ChatLine) {
	// Loop prevention: our own broadcasts come back through the log with
	// the relay tag as their prefix.
	tag := strings.Trim(r.cfg.RelayTag, "[]")
	if line.Prefix == tag || strings.HasPrefix(line.Body, r.cfg.RelayTag) {
		return
	}

	text := "<b>" + html.EscapeString(line.Sender) + "</b>: " + html.EscapeString(r.profanity.Clean(line.Body))
	if line.Prefix != "" {
		text = "[" + html.EscapeString(line.Prefix) + "] " + text
	}
	r.send(ctx, text)
}

func (r *Relay) send(ctx context.Context, text string) {
	_, err := r.chat.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:          r.cfg.BridgeChatID,
		Text:            text,
		ParseMode:       "HTML",
		MessageThreadID: r.cfg.BridgeTopic,
	})
	if err != nil {
		log.Printf("relay: forward to chat: %v", err)
	}
}

// BroadcastCommand builds the console broadcast for one relayed message.
func BroadcastCommand(tag, username, body string) string {
	return fmt.Sprintf(`tellraw @a {"text":"%s %s: %s"}`,
		EscapeName(tag), EscapeName(username), EscapeBody(body))
}

// FormatRemaining renders a cooldown remainder as "1m 5s" or "42s".
func FormatRemaining(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
