// Package notify delivers job events to outside parties.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Ensure notifiers implement the interface.
var (
	_ driven.Notifier = (*Webhook)(nil)
	_ driven.Notifier = (*Log)(nil)
	_ driven.Notifier = Multi(nil)
)

// DefaultWebhookTimeout bounds one delivery attempt.
const DefaultWebhookTimeout = 10 * time.Second

// Webhook POSTs each event as JSON to a URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier. A nil client uses DefaultWebhookTimeout.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: DefaultWebhookTimeout}
	}
	return &Webhook{url: url, client: client}
}

// Notify sends the event. Any non-2xx status is an error.
func (w *Webhook) Notify(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lexcheck-Event", string(event.Type))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send %s event: %w", event.Type, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %s event rejected with status %d", event.Type, resp.StatusCode)
	}
	return nil
}

// Log writes events to a logger. Progress goes to Debug, outcomes to Info
// and failures to Warn.
type Log struct {
	log *logger.Logger
}

// NewLog creates a logging notifier.
func NewLog(log *logger.Logger) *Log {
	return &Log{log: log.With("events")}
}

// Notify logs the event.
func (l *Log) Notify(_ context.Context, event domain.Event) error {
	switch event.Type {
	case domain.EventProgress:
		if p := event.Progress; p != nil {
			l.log.Debug("%s: %s %d%% %s", event.AnalysisID, p.Stage, p.Percent, p.Message)
		}
	case domain.EventCompleted:
		if o := event.Overall; o != nil {
			l.log.Info("%s: completed, compliant=%t score=%.2f violations=%d",
				event.AnalysisID, o.IsCompliant, o.ComplianceScore, o.ViolationCount)
		} else {
			l.log.Info("%s: completed", event.AnalysisID)
		}
	case domain.EventFailed:
		l.log.Warn("%s: failed: %s", event.AnalysisID, event.Error)
	default:
		l.log.Info("%s: %s", event.AnalysisID, event.Type)
	}
	return nil
}

// Multi fans an event out to every notifier. All are tried; errors are joined.
type Multi []driven.Notifier

// Notify delivers to each notifier in order.
func (m Multi) Notify(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromSettings builds the configured notifier: the log sink always, plus a
// webhook when a URL is set.
func FromSettings(s domain.NotifySettings, log *logger.Logger) driven.Notifier {
	sinks := Multi{NewLog(log)}
	if s.WebhookURL != "" {
		sinks = append(sinks, NewWebhook(s.WebhookURL, nil))
	}
	return sinks
}
