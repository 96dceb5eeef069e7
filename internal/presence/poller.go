// Package presence periodically summarizes the live roster to the bridge
// chat, editing one standing announcement message instead of spamming new
// ones.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/craftlink/craftlink/internal/console"
	"github.com/craftlink/craftlink/internal/store"
	"github.com/craftlink/craftlink/internal/telegram"
)

const (
	pollInterval  = 5 * time.Minute
	forceInterval = 15 * time.Minute
	minSpacing    = 10 * time.Second
	rosterMsgKey  = "roster_message_id"

	offlineKey  = "offline"
	offlineText = "🔴 Server offline"
)

// Chat is the slice of the Telegram client the poller uses.
type Chat interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text, parseMode string) error
	EditForumTopic(ctx context.Context, chatID int64, threadID int, name string) error
}

// Settings is the persistent bookkeeping surface (announcement message id).
type Settings interface {
	Setting(key string) (string, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

type Poller struct {
	chat     Chat
	settings Settings
	chatID   int64
	topic    int

	mu   sync.Mutex
	sess console.Session

	// In-memory comparison baseline; deliberately not persisted. A restart
	// re-announces once, which is harmless.
	lastKey     string
	lastEdit    time.Time
	lastAttempt time.Time
	lastOnline  int

	force chan struct{}
	now   func() time.Time
}

func NewPoller(chat Chat, settings Settings, chatID int64, topic int) *Poller {
	return &Poller{
		chat:       chat,
		settings:   settings,
		chatID:     chatID,
		topic:      topic,
		lastOnline: -1,
		force:      make(chan struct{}, 1),
		now:        time.Now,
	}
}

// SetSession is the connection-supervisor subscriber.
func (p *Poller) SetSession(sess console.Session) {
	p.mu.Lock()
	p.sess = sess
	p.mu.Unlock()
}

func (p *Poller) session() console.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess
}

// LastAnnounced returns the last announced roster key and the time of the
// last announcement edit. Consumed by the ops status endpoint.
func (p *Poller) LastAnnounced() (string, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastKey, p.lastEdit
}

// ForceRefresh requests an out-of-schedule poll that bypasses the
// unchanged-roster check (still subject to the minimum spacing).
func (p *Poller) ForceRefresh() {
	select {
	case p.force <- struct{}{}:
	default:
	}
}

// Run polls at startup and on the fixed schedule until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx, false)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, false)
		case <-p.force:
			p.poll(ctx, true)
		}
	}
}

func (p *Poller) poll(ctx context.Context, forced bool) {
	// Bound the update rate under bursty triggers (startup overlapping the
	// first tick, repeated manual refreshes).
	if p.now().Sub(p.lastAttempt) < minSpacing {
		return
	}
	p.lastAttempt = p.now()

	key, text, online := offlineKey, offlineText, 0

	if sess := p.session(); sess != nil {
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		resp, err := sess.Send(sendCtx, "list")
		cancel()
		if err != nil {
			log.Printf("presence: roster query: %v", err)
			return
		}
		roster, err := ParseRoster(resp)
		if err != nil {
			log.Printf("presence: %v", err)
			return
		}
		key, text, online = roster.Key(), roster.Render(), roster.Online
	}

	if key == p.lastKey && !forced && p.now().Sub(p.lastEdit) < forceInterval {
		return
	}

	if err := p.announce(ctx, text); err != nil {
		log.Printf("presence: announce: %v", err)
		return
	}
	p.mu.Lock()
	p.lastKey = key
	p.lastEdit = p.now()
	p.mu.Unlock()

	if p.topic != 0 && online != p.lastOnline {
		name := fmt.Sprintf("Game chat — %d online", online)
		if err := p.chat.EditForumTopic(ctx, p.chatID, p.topic, name); err != nil {
			log.Printf("presence: edit topic: %v", err)
		} else {
			p.lastOnline = online
		}
	}
}

// announce edits the standing roster message, creating a fresh one when no
// handle is recorded or the recorded one can no longer be edited.
func (p *Poller) announce(ctx context.Context, text string) error {
	if raw, err := p.settings.Setting(rosterMsgKey); err == nil {
		msgID, convErr := strconv.Atoi(raw)
		if convErr == nil {
			err := p.chat.EditMessageText(ctx, p.chatID, msgID, text, "")
			if err == nil {
				return nil
			}
			var apiErr *telegram.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != 400 {
				return err
			}
			if strings.Contains(apiErr.Description, "not modified") {
				// Forced refresh with unchanged text; nothing to do.
				return nil
			}
			// The recorded message was deleted; forget it and recreate.
		}
		p.settings.DeleteSetting(rosterMsgKey)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	msg, err := p.chat.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:          p.chatID,
		Text:            text,
		MessageThreadID: p.topic,
	})
	if err != nil {
		return err
	}
	return p.settings.SetSetting(rosterMsgKey, strconv.Itoa(msg.MessageID))
}
