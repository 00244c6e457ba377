package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// CommandHandler is called when a user command is received and returns the reply.
type CommandHandler func(ctx context.Context, command string) string

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls for commands from the configured chat and answers them.
// Messages from other chats are ignored. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	client := &http.Client{Timeout: 35 * time.Second, Transport: t.Client.Transport}

	for {
		updates, err := t.getUpdates(ctx, client, offset)
		if ctx.Err() != nil {
			log.Println("[INFO] Telegram polling stopped")
			return
		}
		if err != nil {
			log.Printf("[WARN] polling request failed: %v", err)
			select {
			case <-ctx.Done():
				log.Println("[INFO] Telegram polling stopped")
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			if fmt.Sprint(update.Message.Chat.ID) != t.ChatID {
				log.Printf("[WARN] ignoring command from chat %d", update.Message.Chat.ID)
				continue
			}
			text := commandText(update.Message.Text)
			log.Printf("[INFO] received command: %s", text)
			if reply := handler(ctx, text); reply != "" {
				if err := t.Send(ctx, reply); err != nil {
					log.Printf("[ERROR] send reply: %v", err)
				}
			}
		}
	}
}

// commandText trims the message and drops a "@BotName" suffix from the command,
// as sent in group chats ("/top@sentinel_bot 2024-03-04").
func commandText(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	if cmd, _, ok := strings.Cut(fields[0], "@"); ok && strings.HasPrefix(cmd, "/") {
		fields[0] = cmd
	}
	return strings.Join(fields, " ")
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int) ([]telegramUpdate, error) {
	apiURL := fmt.Sprintf("%s?offset=%d&timeout=30", t.method("getUpdates"), offset)
	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read polling response: %w", err)
	}

	var result struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode polling response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates: status %d", resp.StatusCode)
	}
	return result.Result, nil
}
