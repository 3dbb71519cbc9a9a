package dispatch

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func testDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return &Dispatcher{
		Meta:   Meta{Provider: "OpenAI", Model: "gpt-4o-mini", PromptName: "Maths"},
		LogDir: t.TempDir(),
		Now:    func() time.Time { return time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC) },
		WriteClipboard: func(string) error {
			return nil
		},
	}
}

// countingTransport fails every request and counts the attempts.
type countingTransport struct{ calls int }

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls++
	return nil, errors.New("no network in tests")
}

func TestFormatMessage(t *testing.T) {
	d := testDispatcher(t)
	got := d.formatMessage("B) 4")
	want := "**AI Answer (OpenAI / gpt-4o-mini / Maths)**\n>>> B) 4"
	if got != want {
		t.Errorf("Unexpected message:\n  want %q\n  got  %q", want, got)
	}
}

func TestWriteLogRecord(t *testing.T) {
	d := testDispatcher(t)

	outcomes := d.Dispatch("B) 4", "2+2?\nA)3 B)4", nil, []Sink{SinkDisk})
	if len(outcomes) != 1 || !outcomes[0].OK {
		t.Fatalf("Expected one successful outcome, got %+v", outcomes)
	}

	path := filepath.Join(d.LogDir, "result_20250314_150926.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected the record at %s: %v", path, err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "=== 2025-03-14 15:09:26 | OpenAI | gpt-4o-mini | Maths ===\n") {
		t.Errorf("Unexpected header: %q", content)
	}
	if !strings.Contains(content, "--- OCR ---\n2+2?\nA)3 B)4\n") {
		t.Error("Expected the OCR text section")
	}
	if !strings.Contains(content, "--- ANSWER ---\nB) 4\n") {
		t.Error("Expected the answer section")
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "rate limited")
	}))
	defer srv.Close()

	d := testDispatcher(t)
	d.WebhookURL = srv.URL

	outcomes := d.Dispatch("B) 4", "ocr text", nil, []Sink{SinkDisk, SinkDiscord, SinkClipboard})
	if len(outcomes) != 3 {
		t.Fatalf("Expected one outcome per sink, got %d", len(outcomes))
	}

	// Disk succeeded even though the webhook next to it failed.
	if outcomes[0].Sink != SinkDisk || !outcomes[0].OK {
		t.Errorf("Expected disk success, got %+v", outcomes[0])
	}
	if outcomes[1].Sink != SinkDiscord || outcomes[1].OK {
		t.Errorf("Expected discord failure, got %+v", outcomes[1])
	}
	if !errors.Is(outcomes[1].Err, ErrWebhookRejected) {
		t.Errorf("Expected ErrWebhookRejected, got %v", outcomes[1].Err)
	}
	if !strings.Contains(outcomes[1].Detail(), "429") || !strings.Contains(outcomes[1].Detail(), "rate limited") {
		t.Errorf("Expected status and body in the detail, got %q", outcomes[1].Detail())
	}
	if outcomes[2].Sink != SinkClipboard || !outcomes[2].OK {
		t.Errorf("Expected clipboard success, got %+v", outcomes[2])
	}
}

func TestDiscordNoContentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Expected form encoding without attachment, got %q", ct)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := testDispatcher(t)
	d.WebhookURL = srv.URL
	outcomes := d.Dispatch("ok", "", nil, []Sink{SinkDiscord})
	if !outcomes[0].OK {
		t.Errorf("Expected 204 to count as success, got %v", outcomes[0].Err)
	}
}

func TestDiscordAttachmentUsesMultipart(t *testing.T) {
	var gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Expected multipart with attachment: %v", err)
			return
		}
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotName = hdr.Filename
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := testDispatcher(t)
	d.WebhookURL = srv.URL
	outcomes := d.Dispatch("ok", "", []byte{0x89, 'P', 'N', 'G'}, []Sink{SinkDiscord})
	if !outcomes[0].OK {
		t.Fatalf("Expected success, got %v", outcomes[0].Err)
	}
	if gotName != "capture.png" {
		t.Errorf("Expected the capture.png attachment, got %q", gotName)
	}
}

func TestTelegramMissingCredentials(t *testing.T) {
	transport := &countingTransport{}
	d := testDispatcher(t)
	d.HTTPClient = &http.Client{Transport: transport}
	d.TelegramToken = "  "
	d.TelegramChat = ""

	outcomes := d.Dispatch("ok", "", nil, []Sink{SinkTelegram})
	if outcomes[0].OK {
		t.Fatal("Expected a failure with blank credentials")
	}
	if !errors.Is(outcomes[0].Err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", outcomes[0].Err)
	}
	if transport.calls != 0 {
		t.Errorf("Expected zero network calls, got %d", transport.calls)
	}
}

func TestTelegramSend(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	d := testDispatcher(t)
	d.TelegramToken = "123:ABC"
	d.TelegramChat = "42"
	d.TelegramBaseURL = srv.URL

	outcomes := d.Dispatch("B) 4", "", nil, []Sink{SinkTelegram})
	if !outcomes[0].OK {
		t.Fatalf("Expected success, got %v", outcomes[0].Err)
	}
	if gotPath != "/bot123:ABC/sendMessage" {
		t.Errorf("Unexpected path %q", gotPath)
	}
	if !strings.Contains(gotBody, `"chat_id":"42"`) || !strings.Contains(gotBody, `"parse_mode":"Markdown"`) {
		t.Errorf("Unexpected payload %q", gotBody)
	}
}

func TestTelegramRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"ok":false,"description":"bot was blocked"}`)
	}))
	defer srv.Close()

	d := testDispatcher(t)
	d.TelegramToken = "123:ABC"
	d.TelegramChat = "42"
	d.TelegramBaseURL = srv.URL

	outcomes := d.Dispatch("x", "", nil, []Sink{SinkTelegram})
	if !errors.Is(outcomes[0].Err, ErrMessagingAPIRejected) {
		t.Errorf("Expected ErrMessagingAPIRejected, got %v", outcomes[0].Err)
	}
	if !strings.Contains(outcomes[0].Detail(), "bot was blocked") {
		t.Errorf("Expected the API description in the detail, got %q", outcomes[0].Detail())
	}
}

func TestConnectivityTestDiscord(t *testing.T) {
	var content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content = r.PostFormValue("content")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := testDispatcher(t)
	d.WebhookURL = srv.URL
	if err := d.TestDiscord(); err != nil {
		t.Fatal(err)
	}
	if content != "Test from OCR QCM" {
		t.Errorf("Unexpected test message %q", content)
	}
}

func TestConnectivityTestTelegram(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	d := testDispatcher(t)
	d.TelegramToken = "123:ABC"
	d.TelegramChat = "42"
	d.TelegramBaseURL = srv.URL
	if err := d.TestTelegram(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, `"text":"Test from OCR QCM"`) {
		t.Errorf("Unexpected test payload %q", body)
	}

	// Blank credentials still fail before the network, test path included.
	d.TelegramToken = ""
	if err := d.TestTelegram(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	// 199 ASCII bytes then a two-byte rune straddling the 200-byte cut.
	s := strings.Repeat("a", 199) + "éé"
	got := truncate(s)
	if len(got) != 199 {
		t.Errorf("Expected the cut before the split rune, got %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("Expected no partial rune in %q", got)
	}

	if short := truncate("petit message d'erreur"); short != "petit message d'erreur" {
		t.Errorf("Expected short strings untouched, got %q", short)
	}
}

func TestClipboardFailureMapsToSentinel(t *testing.T) {
	d := testDispatcher(t)
	d.WriteClipboard = func(string) error { return errors.New("no display") }

	outcomes := d.Dispatch("x", "", nil, []Sink{SinkClipboard})
	if !errors.Is(outcomes[0].Err, ErrClipboardUnavailable) {
		t.Errorf("Expected ErrClipboardUnavailable, got %v", outcomes[0].Err)
	}
}

func TestDiskWithoutLogDir(t *testing.T) {
	d := testDispatcher(t)
	d.LogDir = ""

	outcomes := d.Dispatch("x", "", nil, []Sink{SinkDisk})
	if !errors.Is(outcomes[0].Err, ErrDiskWriteFailed) {
		t.Errorf("Expected ErrDiskWriteFailed, got %v", outcomes[0].Err)
	}
}
