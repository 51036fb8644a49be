package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AssignmentNotice is the payload delivered when a tourist gets a guide
// assigned. Dates travel as YYYY-MM-DD strings.
type AssignmentNotice struct {
	TouristID string `json:"tourist_id"`
	GuideID   string `json:"guide_id"`
	TourName  string `json:"tour_name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// WebhookNotifier posts assignment notices to a configured HTTP endpoint.
type WebhookNotifier struct {
	endpoint string
	client   *http.Client
}

// NewWebhookNotifier builds a notifier for the given endpoint.
func NewWebhookNotifier(endpoint string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send delivers a single notice. Callers treat failures as best-effort.
func (n *WebhookNotifier) Send(ctx context.Context, notice AssignmentNotice) error {
	if n.endpoint == "" {
		return fmt.Errorf("webhook endpoint not configured")
	}

	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notice: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notice rejected with status %d", resp.StatusCode)
	}

	return nil
}
