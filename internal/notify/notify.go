package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/domain"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
)

// Message is the rendered content for one transition notification.
type Message struct {
	Title    string
	Body     string
	Service  *domain.Service
	Previous domain.ServiceStatus
	Next     domain.ServiceStatus
	At       time.Time
}

type SlackSender interface {
	Send(ctx context.Context, webhookURL string, m Message) error
}

type EmailSender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Dispatcher decides whether a transition notifies and delivers to the
// configured channels. Channels are attempted independently: a failure in one
// never blocks the other, and no failure ever reaches the pipeline caller.
type Dispatcher struct {
	Slack   SlackSender
	Email   EmailSender
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// ShouldNotify evaluates the per-service decision rule. notifyOnCriticalOnly
// is a pre-filter: when set, transitions into degraded never notify,
// regardless of notifyOnDegraded.
func ShouldNotify(s *domain.NotificationSettings, previous, next domain.ServiceStatus) bool {
	if s == nil {
		return false
	}
	if next == domain.StatusDegraded && s.NotifyOnCriticalOnly {
		return false
	}
	switch next {
	case domain.StatusDown:
		return s.NotifyOnDown
	case domain.StatusDegraded:
		return s.NotifyOnDegraded
	case domain.StatusUp:
		return (previous == domain.StatusDown || previous == domain.StatusDegraded) && s.NotifyOnRecovered
	}
	return false
}

// Notify never surfaces an error: every channel failure is logged and
// swallowed so a transition is never "undone" by a delivery problem.
func (d *Dispatcher) Notify(ctx context.Context, svc *domain.Service, previous, next domain.ServiceStatus) {
	settings := svc.NotificationSettings
	if !ShouldNotify(settings, previous, next) {
		return
	}

	now := time.Now().UTC()
	msg := Message{
		Title: fmt.Sprintf("[PulseWatch] status changed for %s", svc.Name),
		Body: fmt.Sprintf("Service %s (%s) status changed from %s to %s at %s.",
			svc.Name, svc.URL, previous, next, now.Format(time.RFC3339)),
		Service:  svc,
		Previous: previous,
		Next:     next,
		At:       now,
	}

	if settings.SlackWebhook != "" && d.Slack != nil {
		if err := d.Slack.Send(ctx, settings.SlackWebhook, msg); err != nil {
			d.record("slack", "error")
			d.Log.Warn("slack_notification_failed",
				zap.String("service_id", string(svc.ID)),
				zap.Error(err),
			)
		} else {
			d.record("slack", "ok")
		}
	}

	if len(settings.Emails) > 0 && d.Email != nil {
		if err := d.Email.Send(ctx, settings.Emails, msg.Title, msg.Body); err != nil {
			d.record("email", "error")
			d.Log.Warn("email_notification_failed",
				zap.String("service_id", string(svc.ID)),
				zap.Int("recipients", len(settings.Emails)),
				zap.Error(err),
			)
		} else {
			d.record("email", "ok")
		}
	}
}

func (d *Dispatcher) record(channel, result string) {
	if d.Metrics != nil {
		d.Metrics.NotificationsTotal.WithLabelValues(channel, result).Inc()
	}
}

// SeverityColor maps a status to the color used in channel payloads.
func SeverityColor(s domain.ServiceStatus) string {
	switch s {
	case domain.StatusUp:
		return "#22c55e"
	case domain.StatusDegraded:
		return "#eab308"
	default:
		return "#ef4444"
	}
}
