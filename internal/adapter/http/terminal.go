package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"poscore/internal/adapter/logger"
	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

// TerminalClient drives the physical card terminal through its LAN bridge.
// Collect blocks until the card holder finishes, so its client carries no
// timeout of its own; cancellation comes from the caller's context.
type TerminalClient struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewTerminalClient(baseURL string, lgr logger.Logger) *TerminalClient {
	return &TerminalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  lgr,
	}
}

func (t *TerminalClient) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/terminal/initialize", nil)
	if err != nil {
		return &domain.TerminalError{Op: "initialize", Err: err}
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return &domain.TerminalError{Op: "initialize", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.TerminalError{Op: "initialize", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	t.logger.Debug("terminal_initialized", "Card terminal ready", "", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (t *TerminalClient) Collect(ctx context.Context, charge interfaces.CardCharge) (*interfaces.CardResult, error) {
	payload, err := json.Marshal(charge)
	if err != nil {
		return nil, &domain.TerminalError{Op: "collect", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/terminal/collect", bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.TerminalError{Op: "collect", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.TerminalError{Op: "collect", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return nil, &domain.PaymentDeclinedError{Method: domain.MethodCard, Reason: "card declined by terminal"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TerminalError{Op: "collect", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var result interfaces.CardResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &domain.TerminalError{Op: "collect", Err: err}
	}
	return &result, nil
}
