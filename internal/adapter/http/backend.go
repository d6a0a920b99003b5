package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"poscore/internal/adapter/logger"
	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

// BackendClient talks to the store backend's payment and approval
// endpoints. Every capture carries its idempotency key in the body and in
// the Idempotency-Key header, so a retried request settles at most once.
type BackendClient struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewBackendClient(baseURL string, timeout time.Duration, lgr logger.Logger) *BackendClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  lgr,
	}
}

// captureResponse is the wire shape of every payment endpoint.
type captureResponse struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference,omitempty"`
	ChangeDue decimal.Decimal `json:"change_due,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Available string          `json:"available,omitempty"`
}

func (c *BackendClient) CaptureCash(ctx context.Context, req interfaces.CaptureRequest) (*interfaces.CaptureResult, error) {
	return c.capture(ctx, "/payments/cash", req)
}

func (c *BackendClient) CaptureCard(ctx context.Context, req interfaces.CaptureRequest) (*interfaces.CaptureResult, error) {
	return c.capture(ctx, "/payments/card", req)
}

func (c *BackendClient) RedeemGiftCard(ctx context.Context, req interfaces.CaptureRequest) (*interfaces.CaptureResult, error) {
	return c.capture(ctx, "/payments/gift-card", req)
}

func (c *BackendClient) SettleByPlatform(ctx context.Context, req interfaces.CaptureRequest) (*interfaces.CaptureResult, error) {
	return c.capture(ctx, "/payments/platform", req)
}

func (c *BackendClient) capture(ctx context.Context, path string, req interfaces.CaptureRequest) (*interfaces.CaptureResult, error) {
	var resp captureResponse
	if err := c.post(ctx, path, req.IdempotencyKey, req, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "settled":
		return &interfaces.CaptureResult{
			Reference: resp.Reference,
			ChangeDue: resp.ChangeDue,
		}, nil
	case "pending_approval":
		return nil, &domain.ApprovalRequiredError{RequestID: resp.RequestID, Operation: "capture"}
	case "insufficient_balance":
		return nil, &domain.InsufficientBalanceError{
			Available: resp.Available,
			Requested: req.Amount.String(),
		}
	case "declined":
		return nil, &domain.PaymentDeclinedError{Method: req.Method, Reason: resp.Message}
	default:
		return nil, fmt.Errorf("unexpected capture status %q", resp.Status)
	}
}

func (c *BackendClient) LookupPolicy(ctx context.Context) (*interfaces.ApprovalPolicy, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/approvals/policy", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build policy request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("policy lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("policy lookup returned status %d", resp.StatusCode)
	}

	var policy interfaces.ApprovalPolicy
	if err := json.NewDecoder(resp.Body).Decode(&policy); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}
	return &policy, nil
}

func (c *BackendClient) SubmitApproval(ctx context.Context, req interfaces.ApprovalRequest) (*interfaces.ApprovalTicket, error) {
	var ticket interfaces.ApprovalTicket
	if err := c.post(ctx, "/approvals", "", req, &ticket); err != nil {
		return nil, err
	}
	if ticket.RequestID == "" {
		return nil, fmt.Errorf("approval submission returned no request id")
	}
	return &ticket, nil
}

func (c *BackendClient) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend_request", fmt.Sprintf("POST %s -> %d", path, resp.StatusCode), idempotencyKey, map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
