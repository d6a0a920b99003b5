package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"poscore/internal/domain"
)

// CaptureRequest is one payment capture sent to the backend. Amount is the
// base leg amount; Surcharge and Tip ride on top. IdempotencyKey is stable
// across retries of the same attempt so the backend can deduplicate.
type CaptureRequest struct {
	OrderNumber    string               `json:"order_number"`
	Method         domain.PaymentMethod `json:"method"`
	Amount         decimal.Decimal      `json:"amount"`
	Surcharge      decimal.Decimal      `json:"surcharge"`
	Tip            decimal.Decimal      `json:"tip"`
	TenderedAmount decimal.Decimal      `json:"tendered_amount"`
	GiftCardToken  string               `json:"gift_card_token,omitempty"`
	PlatformID     string               `json:"platform_id,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// CaptureResult is the settled outcome of a capture.
type CaptureResult struct {
	Reference string          `json:"reference"`
	ChangeDue decimal.Decimal `json:"change_due"`
}

// ApprovalRequest asks the backend to queue a policy-gated mutation for
// manager sign-off. The suspended mutation is applied locally once the
// decision comes back approved; the requester never re-submits it.
type ApprovalRequest struct {
	Operation   string          `json:"operation"`
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
	RequestedBy string          `json:"requested_by"`
	Reason      string          `json:"reason,omitempty"`
}

// ApprovalTicket identifies a pending approval request.
type ApprovalTicket struct {
	RequestID string `json:"request_id"`
}

// ApprovalDecision is the external resolution of a pending request.
type ApprovalDecision struct {
	RequestID  string `json:"request_id"`
	Approved   bool   `json:"approved"`
	DecidedBy  string `json:"decided_by"`
	DenyReason string `json:"deny_reason,omitempty"`
}

// ApprovalPolicy is the per-location thresholds above which a mutation
// needs sign-off. A zero threshold gates every occurrence of that
// operation.
type ApprovalPolicy struct {
	DiscountThreshold      decimal.Decimal `json:"discount_threshold"`
	RefundThreshold        decimal.Decimal `json:"refund_threshold"`
	PriceOverrideThreshold decimal.Decimal `json:"price_override_threshold"`
	VoidRequiresApproval   bool            `json:"void_requires_approval"`
	AllowSelfApproval      bool            `json:"allow_self_approval"`
}

// PaymentBackend is the set of backend payment endpoints the terminal
// consumes. Each call returns a settled result or an error from the domain
// taxonomy; a pending_approval response surfaces as
// *domain.ApprovalRequiredError.
type PaymentBackend interface {
	CaptureCash(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	CaptureCard(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	RedeemGiftCard(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	SettleByPlatform(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	LookupPolicy(ctx context.Context) (*ApprovalPolicy, error)
	SubmitApproval(ctx context.Context, req ApprovalRequest) (*ApprovalTicket, error)
}

// CardCharge is what the physical terminal collects from the card holder.
type CardCharge struct {
	Amount      decimal.Decimal
	OrderNumber string
}

// CardResult is the terminal's capture confirmation.
type CardResult struct {
	Reference string
	CardBrand string
	Last4     string
}

// CardTerminal is the physical payment terminal. Initialize performs the
// handshake before a card flow; Collect blocks until the card holder
// completes or the context is cancelled.
type CardTerminal interface {
	Initialize(ctx context.Context) error
	Collect(ctx context.Context, charge CardCharge) (*CardResult, error)
}

// ApprovalGate suspends a gated flow until a decision arrives. Submit
// registers interest in a ticket; the gate invokes the handler when a
// decision is delivered. A handler rejecting the decision (a blocked
// self-approval, for instance) leaves the ticket registered so another
// approver can still resolve it.
type ApprovalGate interface {
	Submit(ctx context.Context, ticket ApprovalTicket, onDecision func(ApprovalDecision) error) error
}
