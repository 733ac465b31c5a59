package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dev-tams/dbbackup/internal/config"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is the notification payload shared by all notifier implementations.
// Error may be set on a successful backup when a later step, such as the
// retention sweep, failed.
type Event struct {
	Connection string
	Database   string
	Host       string
	Status     string
	File       string
	Dest       string
	Duration   string
	Error      string
	Sweep      *SweepCounts
}

// SweepCounts summarizes the retention sweep that followed an upload.
type SweepCounts struct {
	Deleted        int
	Retained       int
	Unclassifiable int
	Failed         int
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type route struct {
	onSuccess bool
	onFailure bool
	notifier  Notifier
}

type Dispatcher struct {
	routes []route
}

// NewDispatcher builds the routes listed under notifications. Slack routes
// share opts.
func NewDispatcher(cfgs []config.NotificationConfig, opts SlackOptions) (*Dispatcher, error) {
	d := &Dispatcher{routes: make([]route, 0, len(cfgs))}
	for i, n := range cfgs {
		onSuccess, onFailure, err := parseOn(n.On)
		if err != nil {
			return nil, fmt.Errorf("notifications[%d]: %w", i, err)
		}

		switch strings.ToLower(strings.TrimSpace(n.Type)) {
		case "slack":
			nf, err := NewSlack(n.Config.URL, opts)
			if err != nil {
				return nil, fmt.Errorf("notifications[%d] slack: %w", i, err)
			}
			d.Add(nf, onSuccess, onFailure)
		case "email":
			nf, err := NewEmail(n.Config)
			if err != nil {
				return nil, fmt.Errorf("notifications[%d] email: %w", i, err)
			}
			d.Add(nf, onSuccess, onFailure)
		default:
			return nil, fmt.Errorf("notifications[%d]: unsupported notification type %q", i, n.Type)
		}
	}
	return d, nil
}

func (d *Dispatcher) Add(n Notifier, onSuccess, onFailure bool) {
	d.routes = append(d.routes, route{onSuccess: onSuccess, onFailure: onFailure, notifier: n})
}

func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.routes)
}

// Notify sends event to every route that wants its status. All routes are
// tried; the returned error joins the failures.
func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil || len(d.routes) == 0 {
		return nil
	}

	var errs []error
	for i, r := range d.routes {
		if !r.wants(event.Status) {
			continue
		}
		if err := r.notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notification route %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (r route) wants(status string) bool {
	switch status {
	case StatusSuccess:
		return r.onSuccess
	case StatusFailure:
		return r.onFailure
	default:
		return false
	}
}

func parseOn(raw []string) (bool, bool, error) {
	if len(raw) == 0 {
		return false, false, fmt.Errorf("on must include success, failure, or both")
	}

	var onSuccess bool
	var onFailure bool
	for _, v := range raw {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "success":
			onSuccess = true
		case "failure":
			onFailure = true
		case "both":
			onSuccess = true
			onFailure = true
		default:
			return false, false, fmt.Errorf("on contains unsupported value %q", v)
		}
	}

	return onSuccess, onFailure, nil
}
