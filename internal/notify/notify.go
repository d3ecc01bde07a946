// Package notify pushes run summaries to external sinks. Delivery is
// best-effort: a sink failure never affects the run outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Notifier fans a run summary out to the configured sinks: a generic
// webhook and, when configured, a Telegram chat.
type Notifier struct {
	cfg    config.NotifyConfig
	http   *http.Client
	bot    *tgbotapi.BotAPI
	logger zerolog.Logger
}

func New(cfg config.NotifyConfig, logger *zerolog.Logger) *Notifier {
	n := &Notifier{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger.With().Str("component", "notifier").Logger(),
	}

	if cfg.TelegramToken != "" && cfg.TelegramChat != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			n.logger.Warn().Err(err).Msg("telegram sink disabled: bot init failed")
		} else {
			n.bot = bot
		}
	}
	return n
}

// Wants reports whether the configured policy asks for a notification
// for this run status.
func (n *Notifier) Wants(status string) bool {
	switch status {
	case models.RunStatusFailed, models.RunStatusPartial:
		return n.cfg.OnFailure
	default:
		return n.cfg.OnSuccess
	}
}

// NotifyRun sends the markdown summary to every configured sink.
// Each sink failure is logged and swallowed.
func (n *Notifier) NotifyRun(ctx context.Context, run *models.RunLog) error {
	if !n.Wants(run.Status) {
		return nil
	}

	text := FormatRun(run)

	if n.cfg.WebhookURL != "" {
		if err := n.postWebhook(ctx, run, text); err != nil {
			n.logger.Warn().Err(err).Msg("webhook notification failed")
		}
	}

	if n.bot != nil {
		msg := tgbotapi.NewMessage(n.cfg.TelegramChat, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Warn().Err(err).Msg("telegram notification failed")
		}
	}
	return nil
}

type webhookPayload struct {
	Site             string `json:"site"`
	Status           string `json:"status"`
	Checked          int    `json:"checked"`
	SyncedInStock    int    `json:"synced_to_instock"`
	SyncedOutOfStock int    `json:"synced_to_outofstock"`
	Failed           int    `json:"failed"`
	Duration         string `json:"duration"`
	Text             string `json:"text"`
}

func (n *Notifier) postWebhook(ctx context.Context, run *models.RunLog, text string) error {
	payload := webhookPayload{
		Site:             run.Site,
		Status:           run.Status,
		Checked:          run.Checked,
		SyncedInStock:    run.SyncedInStock,
		SyncedOutOfStock: run.SyncedOutOfStock,
		Failed:           run.Failed,
		Duration:         run.Duration.Round(time.Millisecond).String(),
		Text:             text,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// FormatRun renders the markdown summary pushed to the sinks.
func FormatRun(run *models.RunLog) string {
	icon := "✅"
	switch run.Status {
	case models.RunStatusFailed:
		icon = "❌"
	case models.RunStatusPartial:
		icon = "⚠️"
	case models.RunStatusNoChanges:
		icon = "ℹ️"
	}

	text := fmt.Sprintf("%s *Stock sync: %s* (%s)\n", icon, run.Site, run.Status)
	text += fmt.Sprintf("Checked: %d\n", run.Checked)
	text += fmt.Sprintf("Synced to instock: %d\n", run.SyncedInStock)
	text += fmt.Sprintf("Synced to outofstock: %d\n", run.SyncedOutOfStock)
	text += fmt.Sprintf("Failed: %d\n", run.Failed)
	text += fmt.Sprintf("Duration: %s", run.Duration.Round(time.Millisecond))
	if run.Error != nil {
		text += fmt.Sprintf("\nError: %s", *run.Error)
	}
	return text
}
