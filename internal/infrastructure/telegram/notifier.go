package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"DealScanner/internal/config"
	"DealScanner/internal/infrastructure/httpx"
	"DealScanner/internal/message"
	"DealScanner/internal/ports"
)

var (
	// ErrNotConfigured means the bot token or chat id is missing; nothing is sent.
	ErrNotConfigured = errors.New("telegram notifier misconfigured (token/chat_id missing)")
	// ErrRateLimited is returned when Telegram keeps answering 429.
	ErrRateLimited = errors.New("telegram rate limit")
)

// Notifier sends messages to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiURL   string
	maxLen   int
	client   *httpx.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig, client *httpx.Client, logger *slog.Logger) *Notifier {
	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}
	return &Notifier{
		botToken: strings.TrimSpace(cfg.BotToken),
		chatID:   strings.TrimSpace(cfg.ChatID),
		apiURL:   strings.TrimSuffix(cfg.APIURL, "/"),
		maxLen:   cfg.MaxMessageLength,
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Configured reports whether the notifier can deliver anything.
func (n *Notifier) Configured() bool {
	return n != nil && n.botToken != "" && n.chatID != "" && n.client != nil
}

// Send posts an HTML message, split into ordered chunks when it exceeds the length limit.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.Configured() {
		return ErrNotConfigured
	}

	chunks := message.Split(text, n.maxLen)
	for i, chunk := range chunks {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for send slot: %w", err)
		}
		if err := n.sendChunk(ctx, chunk); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (n *Notifier) sendChunk(ctx context.Context, chunk string) error {
	err := n.post(ctx, chunk, "HTML")
	if err == nil {
		return nil
	}
	if httpx.IsStatus(err, http.StatusTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	var se *httpx.StatusError
	if errors.As(err, &se) && se.Code == http.StatusBadRequest && strings.Contains(se.Body, "can't parse entities") {
		if n.logger != nil {
			n.logger.Warn("telegram rejected markup, resending as plain text", "error", err)
		}
		return n.post(ctx, message.PlainText(chunk), "")
	}
	return err
}

func (n *Notifier) post(ctx context.Context, text, parseMode string) error {
	payload := map[string]any{
		"chat_id":                  n.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	resp, err := n.client.Do(ctx, "telegram sendMessage", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return n.redact(err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram error: %s", result.Description)
	}
	return nil
}

// redact keeps the bot token, which is part of the endpoint URL, out of transport errors.
func (n *Notifier) redact(err error) error {
	var se *httpx.StatusError
	if errors.As(err, &se) || !strings.Contains(err.Error(), n.botToken) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), n.botToken, "<token>"))
}
