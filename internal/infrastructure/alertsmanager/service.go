package alertsmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/binaryplan/binaryd/internal/core/ports"
	"github.com/cenkalti/backoff/v4"
)

const (
	serviceName = "binaryd"
	severity    = "info"

	maxRetries     = 5
	baseRetryDelay = 100 * time.Millisecond
)

type Alert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
}

type service struct {
	baseUrl     string
	explorerUrl string
	httpClient  *http.Client
}

func NewService(alertManagerURL, explorerURL string) ports.Alerts {
	return &service{
		baseUrl:     alertManagerURL,
		explorerUrl: strings.TrimSuffix(explorerURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *service) Publish(ctx context.Context, topic ports.Topic, message any) error {
	labels := map[string]string{
		"alertname": string(topic),
		"service":   serviceName,
		"severity":  severity,
	}

	desc := ""
	annotations := map[string]string{}
	switch topic {
	case ports.SweepCompleted:
		annotations["firing_title"] = "🌳 Sweep Completed"
		m, ok := message.(ports.SweepCompletedAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		desc = formatSweepCompletedAlert(m)
		labels["generation"] = fmt.Sprintf("%d", m.Generation)
	case ports.OrphanCandidates:
		annotations["firing_title"] = "👻 Orphan Candidates"
		labels["severity"] = "warning"
		m, ok := message.(ports.OrphanCandidatesAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		desc = formatOrphanCandidatesAlert(m)
		labels["generation"] = fmt.Sprintf("%d", m.Generation)
	case ports.AmbiguousSettlement:
		annotations["firing_title"] = "⚠️ Ambiguous Settlement"
		labels["severity"] = "warning"
		m, ok := message.(ports.AmbiguousSettlementAlert)
		if !ok {
			return fmt.Errorf("invalid message type: %T", message)
		}
		desc = formatAmbiguousSettlementAlert(s.explorerUrl, m)
		labels["account"] = m.Account
		labels["settlement_id"] = m.SettlementID
	default:
		annotations["firing_title"] = fmt.Sprintf("🔔 %s", topic)
		desc = formatGenericAlert(map[string]any{"event": message})
	}

	annotations["description"] = desc
	alert := Alert{
		Labels:      labels,
		Annotations: annotations,
		StartsAt:    time.Now(),
	}

	if err := s.sendAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to send alert to AlertManager: %w", err)
	}

	return nil
}

func (s *service) sendAlert(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal([]Alert{alert})
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	attempts := 0
	send := func() error {
		attempts++
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, s.baseUrl, bytes.NewReader(payload),
		)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("alertmanager replied with status %d", resp.StatusCode)
		default:
			return backoff.Permanent(
				fmt.Errorf("alertmanager rejected alert with status %d", resp.StatusCode),
			)
		}
	}

	// 100ms, 200ms, 400ms, 800ms between attempts
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseRetryDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	if err := backoff.Retry(
		send, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries-1), ctx),
	); err != nil {
		return fmt.Errorf("failed to send alert after %d attempt(s): %w", attempts, err)
	}
	return nil
}

func formatSweepCompletedAlert(data ports.SweepCompletedAlert) string {
	lines := make([]string, 0)
	lines = append(lines, fmt.Sprintf("*Generation:* `%d`", data.Generation))
	lines = append(lines, fmt.Sprintf("• Duration: %s", data.Duration))
	lines = append(lines, fmt.Sprintf("• Accounts processed: %d", data.Processed))
	lines = append(lines, fmt.Sprintf("• Accounts skipped: %d", data.Skipped))

	lines = append(lines, "\n*Placement:*")
	lines = append(lines, fmt.Sprintf("• Placed: %d", data.Placed))
	lines = append(lines, fmt.Sprintf("• Cycles broken: %d", data.CyclesBroken))
	lines = append(lines, fmt.Sprintf("• Detached by conflict: %d", data.Detached))
	lines = append(lines, fmt.Sprintf("• Orphan candidates: %d", data.OrphanCandidates))
	return strings.Join(lines, "\n")
}

func formatOrphanCandidatesAlert(data ports.OrphanCandidatesAlert) string {
	lines := make([]string, 0, len(data.Accounts)+1)
	lines = append(lines, fmt.Sprintf(
		"%d unregistered accounts with no claims (generation %d):",
		len(data.Accounts), data.Generation,
	))
	for _, account := range data.Accounts {
		lines = append(lines, fmt.Sprintf("• `%s`", account))
	}
	return strings.Join(lines, "\n")
}

func formatAmbiguousSettlementAlert(explorerUrl string, data ports.AmbiguousSettlementAlert) string {
	lines := make([]string, 0)
	if explorerUrl != "" && data.TxRef != "" {
		lines = append(lines, fmt.Sprintf("%s/tx/%s", explorerUrl, data.TxRef))
	}
	lines = append(lines, fmt.Sprintf("\n*Account:* `%s`", data.Account))
	lines = append(lines, fmt.Sprintf("• Settlement: %s", data.SettlementID))
	lines = append(lines, fmt.Sprintf("• Amount: %s", data.Amount))
	lines = append(lines, fmt.Sprintf("• Matched points: %s", data.MatchedPoints))
	lines = append(lines, fmt.Sprintf("• Reason: %s", data.Reason))
	return strings.Join(lines, "\n")
}

func formatGenericAlert(data map[string]any) string {
	lines := make([]string, 0)
	for key, value := range data {
		lines = append(lines, fmt.Sprintf("• %s: %v", key, value))
	}
	return strings.Join(lines, "\n")
}
