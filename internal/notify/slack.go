package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/dev-tams/dbbackup/internal/config"
)

const defaultRetryInterval = 500 * time.Millisecond

// SlackOptions tune the incoming-webhook notifier. Zero values fall back to
// the config defaults.
type SlackOptions struct {
	Username      string
	IconURL       string
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// SlackOptionsFromConfig maps the notify section of the config file.
func SlackOptionsFromConfig(cfg config.NotifyConfig) SlackOptions {
	return SlackOptions{
		Username:   cfg.Username,
		IconURL:    cfg.IconURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}
}

type slackPayload struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	IconURL  string `json:"icon_url,omitempty"`
}

type slackNotifier struct {
	url           string
	username      string
	iconURL       string
	maxRetries    int
	retryInterval time.Duration
	client        *http.Client
}

func NewSlack(webhookURL string, opts SlackOptions) (Notifier, error) {
	trimmed := strings.TrimSpace(webhookURL)
	if trimmed == "" {
		return nil, fmt.Errorf("config.url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}

	if opts.Username == "" {
		opts.Username = config.DefaultUsername
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}

	return &slackNotifier{
		url:           trimmed,
		username:      opts.Username,
		iconURL:       opts.IconURL,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		client:        &http.Client{Timeout: opts.Timeout},
	}, nil
}

// SlackWebhookURL resolves the webhook for a connection. An explicit
// webhook_url wins over the legacy token and subdomain pair.
func SlackWebhookURL(cfg config.SlackConfig) (string, error) {
	if u := strings.TrimSpace(cfg.WebhookURL); u != "" {
		return u, nil
	}
	token := strings.TrimSpace(cfg.Token)
	sub := strings.TrimSpace(cfg.SubDomain)
	if token == "" || sub == "" {
		return "", errors.New("slack webhook_url or token and subdomain are required")
	}
	return fmt.Sprintf("https://%s.slack.com/services/hooks/incoming-webhook?token=%s", sub, url.QueryEscape(token)), nil
}

func (s *slackNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(slackPayload{
		Text:     Text(event),
		Username: s.username,
		IconURL:  s.iconURL,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxRetries)), ctx)

	return backoff.Retry(func() error { return s.post(ctx, body) }, b)
}

// post returns a permanent error for responses that a retry cannot fix.
func (s *slackNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("send request: %w", err))
		}
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("received non-success status: %s", resp.Status)
	default:
		return backoff.Permanent(fmt.Errorf("received non-success status: %s", resp.Status))
	}
}
