// Package dispatch fans a completed answer out to the enabled sinks:
// clipboard, disk log, Discord webhook, Telegram bot. Every sink is
// attempted independently; one sink's failure never aborts the others and
// never propagates past Dispatch. Outcomes are returned for display.
package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Marianoooo45/ocr-qcm-ctk/clipboard"
)

type Sink string

const (
	SinkClipboard Sink = "clipboard"
	SinkDisk      Sink = "disk"
	SinkDiscord   Sink = "discord"
	SinkTelegram  Sink = "telegram"
)

var (
	ErrClipboardUnavailable = errors.New("clipboard unavailable")
	ErrDiskWriteFailed      = errors.New("disk write failed")
	ErrWebhookRejected      = errors.New("webhook rejected")
	ErrMessagingAPIRejected = errors.New("messaging API rejected")
	// ErrMissingCredentials fails a messaging send before any network call
	// is attempted.
	ErrMissingCredentials = errors.New("missing credentials")
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// Outcome records one sink attempt.
type Outcome struct {
	Sink Sink
	OK   bool
	Err  error
}

// Detail returns the human-readable failure detail, "" on success.
func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Meta is the originating-request context included in outbound messages and
// log headers.
type Meta struct {
	Provider   string
	Model      string
	PromptName string
}

// Dispatcher is an immutable-per-call configuration for the fan-out. The
// shell rebuilds one when settings change rather than sharing mutable state.
type Dispatcher struct {
	Meta          Meta
	LogDir        string
	WebhookURL    string
	TelegramToken string
	TelegramChat  string

	// TelegramBaseURL overrides the bot API host (tests). Empty uses the
	// real endpoint.
	TelegramBaseURL string
	// HTTPClient serves the webhook and bot sinks. Nil uses a 10s-timeout
	// client matching the original behavior.
	HTTPClient *http.Client
	// WriteClipboard overrides the system clipboard writer (tests).
	WriteClipboard func(text string) error
	// Now overrides the timestamp source for log records (tests).
	Now func() time.Time
}

// Dispatch delivers answer to each enabled sink in order and returns one
// outcome per sink. Failures are contained: recorded, logged, returned.
// preview, when non-nil, is attached to the webhook message as a PNG.
func (d *Dispatcher) Dispatch(answer, ocrText string, preview []byte, sinks []Sink) []Outcome {
	outcomes := make([]Outcome, 0, len(sinks))
	for _, sink := range sinks {
		var err error
		switch sink {
		case SinkClipboard:
			err = d.copyToClipboard(answer)
		case SinkDisk:
			err = d.writeLogRecord(answer, ocrText)
		case SinkDiscord:
			err = d.sendDiscord(d.formatMessage(answer), preview)
		case SinkTelegram:
			err = d.sendTelegram(d.formatMessage(answer))
		default:
			err = fmt.Errorf("unknown sink %q", sink)
		}
		if err != nil {
			log.Printf("Dispatch: %s sink failed: %v", sink, err)
		}
		outcomes = append(outcomes, Outcome{Sink: sink, OK: err == nil, Err: err})
	}
	return outcomes
}

// TestDiscord sends a connectivity test message to the webhook.
func (d *Dispatcher) TestDiscord() error {
	return d.sendDiscord("Test from OCR QCM", nil)
}

// TestTelegram sends a connectivity test message via the bot API.
func (d *Dispatcher) TestTelegram() error {
	return d.sendTelegram("Test from OCR QCM")
}

func (d *Dispatcher) formatMessage(answer string) string {
	return fmt.Sprintf("**AI Answer (%s / %s / %s)**\n>>> %s",
		d.Meta.Provider, d.Meta.Model, d.Meta.PromptName, answer)
}

func (d *Dispatcher) copyToClipboard(answer string) error {
	write := d.WriteClipboard
	if write == nil {
		write = clipboard.Write
	}
	if err := write(answer); err != nil {
		return fmt.Errorf("%w: %v", ErrClipboardUnavailable, err)
	}
	return nil
}

// writeLogRecord appends a timestamp-named record under LogDir, creating the
// directory if absent. One file per completed answer, no rotation.
func (d *Dispatcher) writeLogRecord(answer, ocrText string) error {
	if d.LogDir == "" {
		return fmt.Errorf("%w: log directory not configured", ErrDiskWriteFailed)
	}
	if err := os.MkdirAll(d.LogDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrDiskWriteFailed, err)
	}

	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s | %s | %s | %s ===\n",
		now.Format("2006-01-02 15:04:05"), d.Meta.Provider, d.Meta.Model, d.Meta.PromptName)
	b.WriteString("--- OCR ---\n")
	b.WriteString(ocrText)
	b.WriteString("\n--- ANSWER ---\n")
	b.WriteString(answer)
	b.WriteString("\n")

	path := filepath.Join(d.LogDir, fmt.Sprintf("result_%s.txt", now.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrDiskWriteFailed, err)
	}
	return nil
}

func (d *Dispatcher) sendDiscord(content string, attachment []byte) error {
	webhookURL := strings.TrimSpace(d.WebhookURL)
	if webhookURL == "" {
		return fmt.Errorf("%w: webhook URL is empty", ErrWebhookRejected)
	}

	var (
		body        io.Reader
		contentType string
	)
	if len(attachment) > 0 {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField("content", content); err != nil {
			return fmt.Errorf("%w: %v", ErrWebhookRejected, err)
		}
		fw, err := mw.CreateFormFile("file", "capture.png")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWebhookRejected, err)
		}
		if _, err := fw.Write(attachment); err != nil {
			return fmt.Errorf("%w: %v", ErrWebhookRejected, err)
		}
		if err := mw.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrWebhookRejected, err)
		}
		body = &buf
		contentType = mw.FormDataContentType()
	} else {
		form := url.Values{"content": {content}}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	resp, err := d.httpClient().Post(webhookURL, contentType, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: HTTP %d: %s", ErrWebhookRejected, resp.StatusCode, truncate(string(detail)))
	}
	return nil
}

func (d *Dispatcher) sendTelegram(text string) error {
	token := strings.TrimSpace(d.TelegramToken)
	chat := strings.TrimSpace(d.TelegramChat)
	if token == "" || chat == "" {
		return fmt.Errorf("%w: bot token and chat id are required", ErrMissingCredentials)
	}

	base := d.TelegramBaseURL
	if base == "" {
		base = defaultTelegramBaseURL
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(base, "/"), token)

	payload, err := json.Marshal(telegramSendMessage{ChatID: chat, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMessagingAPIRejected, err)
	}
	resp, err := d.httpClient().Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMessagingAPIRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: HTTP %d: %s", ErrMessagingAPIRejected, resp.StatusCode, truncate(string(detail)))
	}
	return nil
}

type telegramSendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

func (d *Dispatcher) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// truncate bounds a response body for display, cutting on a rune boundary so
// multi-byte text is never split mid-sequence.
func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
