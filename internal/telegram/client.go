// Package telegram is a thin typed client for the Bot API methods the
// bridge uses: sendMessage, editMessageText, deleteMessage, editForumTopic
// and getUpdates long polling.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		// Long poll timeout is 50s server-side; leave headroom.
		http: &http.Client{Timeout: 65 * time.Second},
	}
}

// apiResponse is the Bot API envelope around every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// APIError is a non-ok Bot API response. Callers inspect Code to tell a
// vanished message (400) from rate limiting (429).
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}

	var env apiResponse
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !env.OK {
		return &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
	}
	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text, parseMode string) error {
	params := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if parseMode != "" {
		params["parse_mode"] = parseMode
	}
	return c.call(ctx, "editMessageText", params, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *Client) EditForumTopic(ctx context.Context, chatID int64, threadID int, name string) error {
	return c.call(ctx, "editForumTopic", map[string]any{
		"chat_id":           chatID,
		"message_thread_id": threadID,
		"name":              name,
	}, nil)
}

// DeleteAfter removes a message once the delay elapses. Used for the
// self-cleaning "must register" and cooldown notices.
func (c *Client) DeleteAfter(chatID int64, messageID int, delay time.Duration) {
	go func() {
		time.Sleep(delay)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.DeleteMessage(ctx, chatID, messageID); err != nil {
			log.Printf("telegram: delete message %d: %v", messageID, err)
		}
	}()
}

// Updates long-polls getUpdates and delivers each update on the returned
// channel until ctx is cancelled. Poll errors are logged and retried after
// a short pause rather than surfaced; the stream is expected to outlive
// transient API trouble.
func (c *Client) Updates(ctx context.Context) <-chan Update {
	out := make(chan Update)
	go func() {
		defer close(out)
		var offset int64
		for {
			if ctx.Err() != nil {
				return
			}
			var updates []Update
			err := c.call(ctx, "getUpdates", map[string]any{
				"offset":  offset,
				"timeout": 50,
			}, &updates)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("telegram: getUpdates: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(3 * time.Second):
				}
				continue
			}
			for _, u := range updates {
				offset = u.UpdateID + 1
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
