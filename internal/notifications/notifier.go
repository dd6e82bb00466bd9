package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Message struct {
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Tag         string                 `json:"tag,omitempty"`
	Icon        string                 `json:"icon,omitempty"`
	ClickAction string                 `json:"click_action,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	// DeviceTokens is the union of device tokens across every reader of
	// the manga this message concerns, so a single Notify call addresses
	// the whole batch through a multi-device endpoint instead of one call
	// per reader.
	DeviceTokens []string `json:"device_tokens"`
}

// MangaUpdated builds the push payload the Refresh Loop (§4.I) sends when a
// manga's chapter count changes: {title, body, tag, data:{manga_id},
// click_action: "MANGA_UPDATED"}, addressed to deviceTokens.
func MangaUpdated(mangaID int64, mangaTitle string, deviceTokens []string) Message {
	return Message{
		Title:       "Manga Updated!",
		Body:        mangaTitle,
		Tag:         fmt.Sprintf("%d", mangaID),
		ClickAction: "MANGA_UPDATED",
		Data: map[string]interface{}{
			"manga_id": fmt.Sprintf("%d", mangaID),
		},
		DeviceTokens: deviceTokens,
	}
}

type Notifier interface {
	Notify(ctx context.Context, message Message) error
}

type NoopNotifier struct{}

func (n NoopNotifier) Notify(_ context.Context, _ Message) error {
	return nil
}

type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(webhookURL string) (*WebhookNotifier, error) {
	trimmed := strings.TrimSpace(webhookURL)
	if trimmed == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	return &WebhookNotifier{
		url: trimmed,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (w *WebhookNotifier) Notify(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", res.StatusCode)
	}

	return nil
}

type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(items ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(items))
	for _, item := range items {
		if item != nil {
			filtered = append(filtered, item)
		}
	}
	return &MultiNotifier{notifiers: filtered}
}

func (m *MultiNotifier) Notify(ctx context.Context, message Message) error {
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, message); err != nil {
			return err
		}
	}
	return nil
}
