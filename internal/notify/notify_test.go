package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dev-tams/dbbackup/internal/config"
)

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestParseOn(t *testing.T) {
	s, f, err := parseOn([]string{"both"})
	if err != nil || !s || !f {
		t.Fatalf("both: %v %v %v", s, f, err)
	}
	s, f, err = parseOn([]string{" Failure "})
	if err != nil || s || !f {
		t.Fatalf("failure: %v %v %v", s, f, err)
	}
	if _, _, err := parseOn(nil); err == nil {
		t.Fatal("expected error for empty on")
	}
	if _, _, err := parseOn([]string{"always"}); err == nil {
		t.Fatal("expected error for unknown value")
	}
}

func TestDispatcherRoutesByStatus(t *testing.T) {
	onlyFailure := &recordingNotifier{}
	onlySuccess := &recordingNotifier{err: errors.New("boom")}

	d := &Dispatcher{}
	d.Add(onlyFailure, false, true)
	d.Add(onlySuccess, true, false)

	err := d.Notify(context.Background(), Event{Status: StatusSuccess})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected joined route error, got %v", err)
	}
	if len(onlyFailure.events) != 0 || len(onlySuccess.events) != 1 {
		t.Fatalf("unexpected routing: failure=%d success=%d", len(onlyFailure.events), len(onlySuccess.events))
	}

	if err := d.Notify(context.Background(), Event{Status: StatusFailure}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(onlyFailure.events) != 1 {
		t.Fatal("failure route should have fired")
	}
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	if err := d.Notify(context.Background(), Event{Status: StatusSuccess}); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 0 {
		t.Fatal("nil dispatcher has no routes")
	}
}

func TestNewDispatcherFromConfig(t *testing.T) {
	d, err := NewDispatcher([]config.NotificationConfig{
		{Type: "slack", On: []string{"success"}, Config: config.NotificationDetails{URL: "https://hooks.example.com/x"}},
		{Type: "email", On: []string{"failure"}, Config: config.NotificationDetails{SMTPHost: "smtp.example.com", SMTPPort: 25, From: "a@example.com", To: "b@example.com"}},
	}, SlackOptions{})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("expected 2 routes, got %d", d.Len())
	}

	_, err = NewDispatcher([]config.NotificationConfig{{Type: "pager", On: []string{"both"}}}, SlackOptions{})
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
	_, err = NewDispatcher([]config.NotificationConfig{{Type: "email", On: []string{"both"}}}, SlackOptions{})
	if err == nil {
		t.Fatal("expected error for incomplete email config")
	}
}

func TestSlackWebhookURL(t *testing.T) {
	got, err := SlackWebhookURL(config.SlackConfig{Token: "a b/c", SubDomain: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	want := "https://acme.slack.com/services/hooks/incoming-webhook?token=a+b%2Fc"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}

	got, err = SlackWebhookURL(config.SlackConfig{WebhookURL: "https://hooks.slack.com/services/T/B/X", Token: "ignored", SubDomain: "acme"})
	if err != nil || got != "https://hooks.slack.com/services/T/B/X" {
		t.Fatalf("explicit webhook should win: %q %v", got, err)
	}

	if _, err := SlackWebhookURL(config.SlackConfig{Token: "only"}); err == nil {
		t.Fatal("expected error without subdomain")
	}
}

func TestSlackPostsPayload(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewSlack(srv.URL, SlackOptions{IconURL: "https://example.com/icon.png"})
	if err != nil {
		t.Fatal(err)
	}
	err = n.Notify(context.Background(), Event{Status: StatusSuccess, Database: "app", Host: "db.internal"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if got.Text != "A backup of the app at db.internal has been created." {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if got.Username != config.DefaultUsername || got.IconURL != "https://example.com/icon.png" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSlackRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewSlack(srv.URL, SlackOptions{MaxRetries: 3, RetryInterval: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), Event{Status: StatusSuccess}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSlackGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n, _ := NewSlack(srv.URL, SlackOptions{MaxRetries: 2, RetryInterval: time.Millisecond})
	err := n.Notify(context.Background(), Event{Status: StatusSuccess})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 1 attempt plus 2 retries, got %d", calls.Load())
	}
}

func TestSlackDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	n, _ := NewSlack(srv.URL, SlackOptions{MaxRetries: 5, RetryInterval: time.Millisecond})
	if err := n.Notify(context.Background(), Event{Status: StatusSuccess}); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", calls.Load())
	}
}

func TestNewSlackRejectsEmptyURL(t *testing.T) {
	if _, err := NewSlack("  ", SlackOptions{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}
