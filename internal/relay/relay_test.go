package relay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/craftlink/craftlink/internal/gamelog"
	"github.com/craftlink/craftlink/internal/store"
	"github.com/craftlink/craftlink/internal/telegram"
)

type fakeChat struct {
	sent    []telegram.SendMessageParams
	deleted []int // message ids scheduled for deletion
}

func (f *fakeChat) SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error) {
	f.sent = append(f.sent, p)
	return &telegram.Message{MessageID: 1000 + len(f.sent)}, nil
}

func (f *fakeChat) DeleteAfter(chatID int64, messageID int, delay time.Duration) {
	f.deleted = append(f.deleted, messageID)
}

type fakeIdentities struct {
	identities map[int64]*store.Identity
	admins     map[int64]int
	unlimited  map[string]bool
	lastSent   map[int64]int64
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{
		identities: map[int64]*store.Identity{},
		admins:     map[int64]int{},
		unlimited:  map[string]bool{},
		lastSent:   map[int64]int64{},
	}
}

func (f *fakeIdentities) GameIdentity(actorID int64) (*store.Identity, error) {
	id, ok := f.identities[actorID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return id, nil
}

func (f *fakeIdentities) AdminLevel(actorID int64) (int, bool) {
	level, ok := f.admins[actorID]
	return level, ok
}

func (f *fakeIdentities) UnlimitedGroups() (map[string]bool, error) { return f.unlimited, nil }

func (f *fakeIdentities) LastSent(actorID int64) (int64, error) { return f.lastSent[actorID], nil }

func (f *fakeIdentities) SetLastSent(actorID int64, ts int64) error {
	f.lastSent[actorID] = ts
	return nil
}

type fakeConsole struct {
	commands []string
	err      error
}

func (f *fakeConsole) Send(ctx context.Context, command string) (string, error) {
	f.commands = append(f.commands, command)
	return "", f.err
}

func (f *fakeConsole) Close() error { return nil }

func inboundMessage(actorID int64, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 42,
		From:      &telegram.User{ID: actorID, FirstName: "Test"},
		Chat:      telegram.Chat{ID: -100},
		Text:      text,
	}
}

func newTestRelay(chat *fakeChat, ids *fakeIdentities, sess *fakeConsole, epoch int64) *Relay {
	r := New(Config{
		BridgeChatID:    -100,
		RelayTag:        "[TG]",
		CooldownSeconds: 60,
	}, chat, ids, nil)
	if sess != nil {
		r.SetSession(sess)
	}
	r.now = func() time.Time { return time.Unix(epoch, 0) }
	return r
}

func TestRelayUnregisteredSender(t *testing.T) {
	chat := &fakeChat{}
	ids := newFakeIdentities()
	sess := &fakeConsole{}
	r := newTestRelay(chat, ids, sess, 1000)

	r.HandleChatMessage(context.Background(), inboundMessage(7, "hello"))

	if len(sess.commands) != 0 {
		t.Fatalf("relayed despite missing identity: %v", sess.commands)
	}
	if len(chat.sent) != 1 || !strings.Contains(chat.sent[0].Text, "register") {
		t.Fatalf("expected a must-register notice, got %v", chat.sent)
	}
	if chat.sent[0].ReplyToMessageID != 42 {
		t.Error("notice should be addressed as a reply")
	}
	// Both the notice and the original are auto-deleted.
	if len(chat.deleted) != 2 {
		t.Errorf("scheduled %d deletions, want 2", len(chat.deleted))
	}
}

func TestRelayCooldownBlocksAndReportsRemaining(t *testing.T) {
	chat := &fakeChat{}
	ids := newFakeIdentities()
	ids.identities[7] = &store.Identity{ActorID: 7, Username: "Tester"}
	ids.lastSent[7] = 1000 - 15 // 15s elapsed of a 60s cooldown
	sess := &fakeConsole{}
	r := newTestRelay(chat, ids, sess, 1000)

	r.HandleChatMessage(context.Background(), inboundMessage(7, "spam"))

	if len(sess.commands) != 0 {
		t.Fatal("message relayed during cooldown")
	}
	if len(chat.sent) != 1 || !strings.Contains(chat.sent[0].Text, "45s") {
		t.Fatalf("expected 45s remaining notice, got %v", chat.sent)
	}
	if ids.lastSent[7] != 1000-15 {
		t.Error("blocked message must not consume the cooldown window")
	}
}

func TestRelayRecordsCooldownBeforeSending(t *testing.T) {
	chat := &fakeChat{}
	ids := newFakeIdentities()
	ids.identities[7] = &store.Identity{ActorID: 7, Username: "Tester"}
	ids.lastSent[7] = 1000 - 61
	sess := &fakeConsole{err: context.DeadlineExceeded} // send fails
	r := newTestRelay(chat, ids, sess, 1000)

	r.HandleChatMessage(context.Background(), inboundMessage(7, "hello"))

	if len(sess.commands) != 1 {
		t.Fatalf("expected one broadcast attempt, got %d", len(sess.commands))
	}
	// A failed relay still consumes the window: recorded before sending.
	if ids.lastSent[7] != 1000 {
		t.Errorf("lastSent = %d, want 1000", ids.lastSent[7])
	}
	if want := `tellraw @a {"text":"[TG] Tester: hello"}`; sess.commands[0] != want {
		t.Errorf("command = %q, want %q", sess.commands[0], want)
	}
}

func TestRelayExemptions(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(ids *fakeIdentities)
	}{
		{"admin", func(ids *fakeIdentities) {
			ids.identities[7] = &store.Identity{ActorID: 7, Username: "Tester"}
			ids.admins[7] = 2
		}},
		{"unlimited group", func(ids *fakeIdentities) {
			ids.identities[7] = &store.Identity{ActorID: 7, Username: "Tester", RankGroup: "vip"}
			ids.unlimited["vip"] = true
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			chat := &fakeChat{}
			ids := newFakeIdentities()
			tc.setup(ids)
			ids.lastSent[7] = 999 // cooldown would block a normal user
			sess := &fakeConsole{}
			r := newTestRelay(chat, ids, sess, 1000)

			r.HandleChatMessage(context.Background(), inboundMessage(7, "hello"))

			if len(sess.commands) != 1 {
				t.Fatalf("exempt sender was blocked: %v", chat.sent)
			}
			if ids.lastSent[7] != 999 {
				t.Error("exempt sender should not touch the cooldown record")
			}
		})
	}
}

func TestRelayDropsWhenDisconnected(t *testing.T) {
	chat := &fakeChat{}
	ids := newFakeIdentities()
	ids.identities[7] = &store.Identity{ActorID: 7, Username: "Tester"}
	r := newTestRelay(chat, ids, nil, 1000)

	r.HandleChatMessage(context.Background(), inboundMessage(7, "hello"))

	// Best-effort: dropped, no queueing, no user-facing error.
	if len(chat.sent) != 0 {
		t.Errorf("unexpected chat traffic: %v", chat.sent)
	}
}

func TestForwardChatLine(t *testing.T) {
	chat := &fakeChat{}
	r := New(Config{BridgeChatID: -100, BridgeTopic: 5, RelayTag: "[TG]"},
		chat, newFakeIdentities(), NewProfanityFilter([]string{"darn"}))

	r.HandleGameEvent(context.Background(), gamelog.ChatLine{Sender: "Alice", Body: "darn <b>bold</b>"})

	if len(chat.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(chat.sent))
	}
	text := chat.sent[0].Text
	if strings.Contains(text, "darn") {
		t.Error("profanity not redacted")
	}
	if strings.Contains(text, "<b>bold</b>") {
		t.Error("body markup not escaped")
	}
	if chat.sent[0].MessageThreadID != 5 {
		t.Error("forward must target the bridge topic")
	}
}

func TestForwardChatLineLoopPrevention(t *testing.T) {
	chat := &fakeChat{}
	r := New(Config{BridgeChatID: -100, RelayTag: "[TG]"}, chat, newFakeIdentities(), nil)

	r.HandleGameEvent(context.Background(), gamelog.ChatLine{Prefix: "TG", Sender: "Server", Body: "Alice: hi"})
	r.HandleGameEvent(context.Background(), gamelog.ChatLine{Sender: "Server", Body: "[TG] Alice: hi"})

	if len(chat.sent) != 0 {
		t.Errorf("relayed our own broadcast back: %v", chat.sent)
	}
}

func TestForwardAuctionEvents(t *testing.T) {
	chat := &fakeChat{}
	r := New(Config{BridgeChatID: -100, RelayTag: "[TG]"}, chat, newFakeIdentities(), nil)

	r.HandleGameEvent(context.Background(), gamelog.AuctionAdded{Seller: "Alice", Qty: 3, Item: "Sword", Price: "1200"})
	r.HandleGameEvent(context.Background(), gamelog.AuctionSold{Buyer: "Bob", Seller: "Alice", Qty: 3, Item: "Sword", Price: "1200"})

	if len(chat.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(chat.sent))
	}
	if !strings.Contains(chat.sent[0].Text, "Alice") || !strings.Contains(chat.sent[0].Text, "1200") {
		t.Errorf("listing announcement incomplete: %q", chat.sent[0].Text)
	}
	if !strings.Contains(chat.sent[1].Text, "Bob") {
		t.Errorf("sale announcement incomplete: %q", chat.sent[1].Text)
	}
}
