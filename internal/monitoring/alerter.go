package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hazardmap/powergrid/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

// Alert types.
const (
	AlertUnmatchedRate AlertType = "unmatched_rate"
	AlertErrorRate     AlertType = "error_rate"
	AlertSourceFailure AlertType = "source_failure"
)

// Alert is one breached threshold.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunSnapshot is what the alerter needs to know about a finished run.
type RunSnapshot struct {
	Records       int `json:"records"`
	Unmatched     int `json:"unmatched"`
	Errors        int `json:"errors"`
	TotalSources  int `json:"total_sources"`
	FailedSources int `json:"failed_sources"`
}

// webhookPayload is the body posted for one run.
type webhookPayload struct {
	Service string      `json:"service"`
	Run     RunSnapshot `json:"run"`
	Alerts  []Alert     `json:"alerts"`
}

// Alerter checks a finished run against the monitoring thresholds.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	clock  clockwork.Clock
}

// NewAlerter returns an Alerter for cfg.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		clock:  clockwork.NewRealClock(),
	}
}

// Evaluate returns the alerts snap triggers. Rate thresholds of zero are
// disabled, and rates are only judged once the run has MinRecords records.
func (a *Alerter) Evaluate(snap RunSnapshot) []Alert {
	var alerts []Alert
	now := a.clock.Now().UTC()

	if snap.Records > 0 && snap.Records >= a.cfg.MinRecords {
		if al, ok := rateAlert(AlertUnmatchedRate, "medium", "Unmatched", snap.Unmatched, snap.Records, a.cfg.MaxUnmatchedRate); ok {
			al.Timestamp = now
			alerts = append(alerts, al)
		}
		if al, ok := rateAlert(AlertErrorRate, "high", "Remote search error", snap.Errors, snap.Records, a.cfg.MaxErrorRate); ok {
			al.Timestamp = now
			alerts = append(alerts, al)
		}
	}

	if snap.FailedSources > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertSourceFailure,
			Severity: "high",
			Message:  fmt.Sprintf("%d of %d capacity source(s) failed", snap.FailedSources, snap.TotalSources),
			Details: map[string]any{
				"failed_sources": snap.FailedSources,
				"total_sources":  snap.TotalSources,
			},
			Timestamp: now,
		})
	}
	return alerts
}

func rateAlert(typ AlertType, severity, label string, n, total int, threshold float64) (Alert, bool) {
	if threshold <= 0 {
		return Alert{}, false
	}
	rate := float64(n) / float64(total)
	if rate <= threshold {
		return Alert{}, false
	}
	return Alert{
		Type:     typ,
		Severity: severity,
		Message: fmt.Sprintf("%s rate %.1f%% exceeds threshold %.1f%% (%d of %d records)",
			label, rate*100, threshold*100, n, total),
		Details: map[string]any{
			"rate":      rate,
			"threshold": threshold,
			"count":     n,
			"records":   total,
		},
	}, true
}

// SendAlerts logs every alert and, when a webhook is configured, posts them
// together with snap in one request. It returns the number of alerts
// delivered to the webhook.
func (a *Alerter) SendAlerts(ctx context.Context, snap RunSnapshot, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	for _, al := range alerts {
		zap.L().Warn("monitoring: alert",
			zap.String("type", string(al.Type)),
			zap.String("severity", al.Severity),
			zap.String("message", al.Message),
		)
	}
	if a.cfg.WebhookURL == "" {
		return 0
	}

	if err := a.post(ctx, webhookPayload{Service: "powergrid", Run: snap, Alerts: alerts}); err != nil {
		zap.L().Error("monitoring: send alerts", zap.Int("alerts", len(alerts)), zap.Error(err))
		return 0
	}
	return len(alerts)
}

func (a *Alerter) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alerts")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
