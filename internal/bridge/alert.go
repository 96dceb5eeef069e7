package bridge

import (
	"context"
	"log"
	"time"

	"github.com/craftlink/craftlink/internal/telegram"
)

// Alerter delivers critical operator notifications (today: the one-time
// console credential rejection) to the configured alert chat.
type Alerter struct {
	chat   *telegram.Client
	chatID int64
}

func NewAlerter(chat *telegram.Client, chatID int64) *Alerter {
	return &Alerter{chat: chat, chatID: chatID}
}

func (a *Alerter) Alert(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := a.chat.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: a.chatID,
		Text:   "⚠️ " + text,
	})
	if err != nil {
		log.Printf("bridge: critical alert not delivered: %v", err)
	}
}
