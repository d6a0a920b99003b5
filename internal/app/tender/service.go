package tender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"poscore/internal/adapter/logger"
	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

// Service is the payment orchestrator. It owns the TenderSession, feeds
// operator events through the tender state machine, performs the resulting
// side effects against the backend and terminal, and folds their outcomes
// back in. All public operations are serialized; the lock is released
// around backend and terminal calls so Close can run while a capture is in
// flight, and a late result for a closed session is discarded.
type Service struct {
	backend  interfaces.PaymentBackend
	terminal interfaces.CardTerminal
	gate     interfaces.ApprovalGate
	journal  interfaces.SettlementRepository
	logger   logger.Logger

	surchargeRate decimal.Decimal

	mu       sync.Mutex
	order    *domain.Order
	session  *domain.TenderSession
	policy   *interfaces.ApprovalPolicy
	pending  map[string]pendingApproval
	onChange func(interfaces.DisplayProjection)
}

// pendingApproval holds a suspended gated mutation until its decision
// arrives.
type pendingApproval struct {
	req   interfaces.ApprovalRequest
	apply func() error
}

func NewService(
	backend interfaces.PaymentBackend,
	terminal interfaces.CardTerminal,
	gate interfaces.ApprovalGate,
	journal interfaces.SettlementRepository,
	logger logger.Logger,
	surchargeRate decimal.Decimal,
) *Service {
	return &Service{
		backend:       backend,
		terminal:      terminal,
		gate:          gate,
		journal:       journal,
		logger:        logger,
		surchargeRate: surchargeRate,
		pending:       make(map[string]pendingApproval),
	}
}

// SetOnChange registers the projection listener. The listener receives a
// settled snapshot after every committed mutation, never an intermediate
// one.
func (s *Service) SetOnChange(fn func(interfaces.DisplayProjection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// LoadOrder installs the working copy of an order and opens a fresh tender
// session for it.
func (s *Service) LoadOrder(order *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.CalculateTotal()
	s.order = order
	s.session = domain.NewTenderSession(order.Number, order.Total)
	s.notifyLocked()
}

// Session returns a copy of the current tender session, or nil when no
// tender is open.
func (s *Service) Session() *domain.TenderSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	copied := *s.session
	return &copied
}

// OpenTender moves an idle session to payment method selection.
func (s *Service) OpenTender() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.ErrNoActiveSession
	}
	_, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventOpenTender})
	return err
}

// SelectPaymentMethod routes the flow to the method-specific state and
// recomputes the surcharge for the current leg. Card methods start the
// terminal handshake before asking for a tip.
func (s *Service) SelectPaymentMethod(ctx context.Context, method domain.PaymentMethod) error {
	s.mu.Lock()

	if s.session == nil {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	if s.session.State != domain.TenderAwaitingPaymentMethod {
		s.mu.Unlock()
		return domain.ErrInvalidTenderTransition
	}

	effects, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventSelectMethod, Method: method})
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.session.PaymentMethod = method
	s.session.SurchargeAmount = domain.ComputeSurcharge(method, s.session.LegAmount(), s.surchargeRate)
	gen := s.session.Generation
	s.notifyLocked()
	s.mu.Unlock()

	if !hasEffect(effects, domain.EffectInitializeTerminal) {
		return nil
	}

	err = s.terminal.Initialize(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLocked(gen) {
		s.logger.Debug("late_terminal_result_dropped", "Terminal handshake finished after session closed", "", nil)
		return domain.ErrSessionClosed
	}

	if err != nil {
		s.session.LastError = (&domain.TerminalError{Op: "initialize", Err: err}).Error()
		_, applyErr := s.applyLocked(domain.TenderEvent{Kind: domain.EventPaymentFailed})
		s.notifyLocked()
		if applyErr != nil {
			return applyErr
		}
		return &domain.TerminalError{Op: "initialize", Err: err}
	}

	_, err = s.applyLocked(domain.TenderEvent{Kind: domain.EventTerminalReady})
	s.notifyLocked()
	return err
}

// EnterSplitAmount commits the base amount of the current split leg and
// returns to method selection so the operator chooses how it is paid.
func (s *Service) EnterSplitAmount(amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.ErrNoActiveSession
	}
	if s.session.State != domain.TenderSplittingPayment {
		return domain.ErrInvalidTenderTransition
	}

	amount = domain.ClampAmount(amount)
	if amount.IsZero() {
		return domain.NewValidationError("amount", "split amount must be greater than zero")
	}
	if amount.GreaterThan(s.session.BalanceDue) {
		return domain.NewValidationError("amount", "split amount exceeds balance due")
	}

	if _, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventSubmitAmount}); err != nil {
		return err
	}
	s.session.PartialAmount = amount
	s.notifyLocked()
	return nil
}

// ApplyCashPayment tenders cash against the current leg. A non-split leg
// requires the tendered amount to cover the amount owed; a split leg
// accepts any positive amount and applies at most the committed partial.
func (s *Service) ApplyCashPayment(ctx context.Context, tendered decimal.Decimal) error {
	s.mu.Lock()

	if s.session == nil {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	if s.session.State != domain.TenderAwaitingCashAmount {
		s.mu.Unlock()
		return domain.ErrInvalidTenderTransition
	}

	tendered = domain.ClampAmount(tendered)
	splitting := s.session.PartialAmount.IsPositive()

	if splitting {
		if !tendered.IsPositive() {
			s.mu.Unlock()
			return domain.NewValidationError("tendered_amount", "amount must be greater than zero")
		}
	} else if tendered.LessThan(s.session.AmountOwed()) {
		s.mu.Unlock()
		return domain.NewValidationError("tendered_amount", "amount does not cover the balance due")
	}

	applied := s.session.LegAmount()
	if splitting && tendered.LessThan(applied) {
		// Cash cannot overdraw a split leg: the leg shrinks to what was
		// actually handed over.
		applied = tendered
		s.session.PartialAmount = tendered
	}
	change := tendered.Sub(applied.Add(s.session.SurchargeAmount))
	if change.IsNegative() {
		change = decimal.Zero
	}

	attempt := &domain.PaymentAttempt{
		Method:         domain.MethodCash,
		Amount:         applied,
		Surcharge:      s.session.SurchargeAmount,
		TenderedAmount: tendered,
		IdempotencyKey: uuid.NewString(),
	}
	s.session.ChangeDue = change

	if err := s.beginCaptureLocked(attempt); err != nil {
		s.mu.Unlock()
		return err
	}
	gen := s.session.Generation
	s.mu.Unlock()

	return s.capture(ctx, gen, attempt)
}

// SetTip records the tip for the pending card leg and starts the capture.
// Tips arrive either from the operator or from the customer display via
// the tip consumer; while the session is not awaiting one, the amount is
// rejected.
func (s *Service) SetTip(ctx context.Context, amount decimal.Decimal) error {
	s.mu.Lock()

	if s.session == nil {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	if s.session.State != domain.TenderAwaitingTip {
		s.mu.Unlock()
		return domain.ErrInvalidTenderTransition
	}

	s.session.TipAmount = domain.ClampAmount(amount)

	attempt := &domain.PaymentAttempt{
		Method:         domain.MethodCard,
		Amount:         s.session.LegAmount(),
		Surcharge:      s.session.SurchargeAmount,
		Tip:            s.session.TipAmount,
		IdempotencyKey: uuid.NewString(),
	}

	if err := s.beginTipCaptureLocked(attempt); err != nil {
		s.mu.Unlock()
		return err
	}
	gen := s.session.Generation
	s.mu.Unlock()

	return s.capture(ctx, gen, attempt)
}

// ApplyGiftCardPayment redeems a gift card against the current leg. An
// insufficient balance keeps the flow in awaiting_gift_card with the error
// surfaced so the operator can correct it without starting over.
func (s *Service) ApplyGiftCardPayment(ctx context.Context, cardToken string, amount decimal.Decimal) error {
	s.mu.Lock()

	if s.session == nil {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	if s.session.State != domain.TenderAwaitingGiftCard {
		s.mu.Unlock()
		return domain.ErrInvalidTenderTransition
	}
	if cardToken == "" {
		s.mu.Unlock()
		return domain.NewValidationError("card_token", "gift card is required")
	}

	amount = domain.ClampAmount(amount)
	if amount.IsZero() {
		s.mu.Unlock()
		return domain.NewValidationError("amount", "redemption amount must be greater than zero")
	}
	if amount.GreaterThan(s.session.LegAmount()) {
		amount = s.session.LegAmount()
	}

	attempt := &domain.PaymentAttempt{
		Method:         domain.MethodGiftCard,
		Amount:         amount,
		GiftCardToken:  cardToken,
		IdempotencyKey: uuid.NewString(),
	}

	if err := s.beginCaptureLocked(attempt); err != nil {
		s.mu.Unlock()
		return err
	}
	gen := s.session.Generation
	s.mu.Unlock()

	return s.capture(ctx, gen, attempt)
}

// SelectDeliveryPlatform marks the order as settled by a delivery
// platform, bypassing capture entirely. The platform must actually be
// chosen: submitting without one surfaces a validation error instead of a
// silent no-op.
func (s *Service) SelectDeliveryPlatform(ctx context.Context, platformID string) error {
	s.mu.Lock()

	if s.session == nil {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	if s.session.State != domain.TenderAwaitingDeliveryPlatform {
		s.mu.Unlock()
		return domain.ErrInvalidTenderTransition
	}
	if platformID == "" {
		s.mu.Unlock()
		return domain.NewValidationError("platform_id", "delivery platform selection is required")
	}

	attempt := &domain.PaymentAttempt{
		Method:         domain.MethodDeliveryPlatform,
		Amount:         s.session.BalanceDue,
		PlatformID:     platformID,
		IdempotencyKey: uuid.NewString(),
	}

	if err := s.beginCaptureLocked(attempt); err != nil {
		s.mu.Unlock()
		return err
	}
	gen := s.session.Generation
	s.mu.Unlock()

	return s.capture(ctx, gen, attempt)
}

// RetryFailedPayment re-submits the last failed attempt verbatim: same
// method, same amount, same idempotency key. The operator is never asked
// to re-enter the amount.
func (s *Service) RetryFailedPayment(ctx context.Context) error {
	s.mu.Lock()

	if s.session == nil {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	if s.session.State != domain.TenderPaymentError {
		s.mu.Unlock()
		return domain.ErrInvalidTenderTransition
	}
	attempt := s.session.LastAttempt
	if attempt == nil {
		s.mu.Unlock()
		return domain.ErrNoFailedAttempt
	}

	if _, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventRetry}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.session.LastError = ""
	gen := s.session.Generation
	s.notifyLocked()
	s.mu.Unlock()

	return s.capture(ctx, gen, attempt)
}

// GoBack returns to payment method selection and clears per-leg input.
func (s *Service) GoBack() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.ErrNoActiveSession
	}

	leaving := s.session.State
	if _, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventGoBack}); err != nil {
		return err
	}

	s.session.PaymentMethod = ""
	s.session.SurchargeAmount = decimal.Zero
	s.session.TipAmount = decimal.Zero
	s.session.ChangeDue = decimal.Zero
	s.session.LastError = ""
	if leaving == domain.TenderSplittingPayment {
		s.session.PartialAmount = decimal.Zero
	}
	s.notifyLocked()
	return nil
}

// CloseTender cancels the open flow. The order status is left untouched;
// nothing partial is persisted. A capture already in flight is not
// cancelled, but its late result will find the session gone and be
// dropped.
func (s *Service) CloseTender() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.ErrNoActiveSession
	}
	if s.session.State == domain.TenderComplete {
		return domain.ErrInvalidTenderTransition
	}

	if _, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventCancel}); err != nil {
		return err
	}
	s.clearSessionLocked()
	return nil
}

// StartNewOrder leaves a completed tender and resets for the next order.
func (s *Service) StartNewOrder() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.ErrNoActiveSession
	}
	if _, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventStartNewOrder}); err != nil {
		return err
	}
	s.clearSessionLocked()
	s.order = nil
	return nil
}

// Projection derives the customer display view for the current state.
func (s *Service) Projection() interfaces.DisplayProjection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectionLocked()
}

// --- capture pipeline ---

// beginCaptureLocked records the attempt and moves the flow into
// processing via a submit event. Caller holds the lock.
func (s *Service) beginCaptureLocked(attempt *domain.PaymentAttempt) error {
	if _, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventSubmitAmount}); err != nil {
		return err
	}
	s.session.LastAttempt = attempt
	s.notifyLocked()
	return nil
}

func (s *Service) beginTipCaptureLocked(attempt *domain.PaymentAttempt) error {
	if _, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventTipEntered}); err != nil {
		return err
	}
	s.session.LastAttempt = attempt
	s.notifyLocked()
	return nil
}

// capture performs the backend (and, for card legs, terminal) side of one
// payment attempt and folds the result back into the session. The session
// lock is not held across the I/O; gen pins the session generation the
// attempt belongs to.
func (s *Service) capture(ctx context.Context, gen int, attempt *domain.PaymentAttempt) error {
	result, err := s.dispatch(ctx, attempt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleLocked(gen) {
		s.logger.Debug("late_capture_result_dropped", "Capture finished after tender was closed", attempt.IdempotencyKey, map[string]interface{}{
			"method": string(attempt.Method),
			"amount": attempt.Amount.String(),
		})
		return domain.ErrSessionClosed
	}

	if err != nil {
		return s.captureFailedLocked(attempt, err)
	}
	return s.captureSucceededLocked(attempt, result)
}

func (s *Service) dispatch(ctx context.Context, attempt *domain.PaymentAttempt) (*interfaces.CaptureResult, error) {
	req := interfaces.CaptureRequest{
		OrderNumber:    s.orderNumber(),
		Method:         attempt.Method,
		Amount:         attempt.Amount,
		Surcharge:      attempt.Surcharge,
		Tip:            attempt.Tip,
		TenderedAmount: attempt.TenderedAmount,
		GiftCardToken:  attempt.GiftCardToken,
		PlatformID:     attempt.PlatformID,
		IdempotencyKey: attempt.IdempotencyKey,
	}

	switch attempt.Method {
	case domain.MethodCash:
		return s.backend.CaptureCash(ctx, req)
	case domain.MethodCard:
		charge := interfaces.CardCharge{
			Amount:      attempt.Amount.Add(attempt.Surcharge).Add(attempt.Tip),
			OrderNumber: req.OrderNumber,
		}
		if _, err := s.terminal.Collect(ctx, charge); err != nil {
			return nil, err
		}
		return s.backend.CaptureCard(ctx, req)
	case domain.MethodGiftCard:
		return s.backend.RedeemGiftCard(ctx, req)
	case domain.MethodDeliveryPlatform:
		return s.backend.SettleByPlatform(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported payment method %q", attempt.Method)
	}
}

func (s *Service) captureSucceededLocked(attempt *domain.PaymentAttempt, result *interfaces.CaptureResult) error {
	leg := domain.Settlement{
		OrderNumber:    s.session.OrderNumber,
		Method:         attempt.Method,
		Amount:         attempt.Amount,
		Surcharge:      attempt.Surcharge,
		Tip:            attempt.Tip,
		ChangeDue:      s.session.ChangeDue,
		IdempotencyKey: attempt.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	if s.journal != nil {
		// Journal failures do not un-settle a confirmed capture; the leg
		// went through and the flow moves on.
		if err := s.journal.Record(context.Background(), &leg); err != nil {
			s.logger.Error("journal_write_failed", "Failed to journal settled leg", attempt.IdempotencyKey, nil, err)
		}
	}

	final := s.session.CommitLeg(leg)

	if _, err := s.applyLocked(domain.TenderEvent{Kind: domain.EventPaymentSucceeded, Final: final}); err != nil {
		return err
	}

	if final && s.order != nil {
		s.order.Status = domain.OrderCompleted
		s.order.UpdatedAt = time.Now()
	}

	s.logger.Info("payment_captured", "Payment leg settled", attempt.IdempotencyKey, map[string]interface{}{
		"order":     s.session.OrderNumber,
		"method":    string(attempt.Method),
		"amount":    attempt.Amount.String(),
		"surcharge": attempt.Surcharge.String(),
		"final":     final,
		"reference": result.Reference,
	})
	s.notifyLocked()
	return nil
}

func (s *Service) captureFailedLocked(attempt *domain.PaymentAttempt, err error) error {
	var insufficient *domain.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		// Correctable without losing the flow: back to the gift card
		// screen with the error surfaced, not payment_error.
		s.session.State = domain.TenderAwaitingGiftCard
		s.session.LastError = err.Error()
		s.session.LastAttempt = nil
		s.notifyLocked()
		return err
	}

	s.session.LastError = err.Error()
	if _, applyErr := s.applyLocked(domain.TenderEvent{Kind: domain.EventPaymentFailed}); applyErr != nil {
		return applyErr
	}

	s.logger.Error("payment_failed", "Payment capture failed", attempt.IdempotencyKey, map[string]interface{}{
		"order":  s.session.OrderNumber,
		"method": string(attempt.Method),
		"amount": attempt.Amount.String(),
	}, err)
	s.notifyLocked()
	return err
}

// --- approval-gated mutations ---

// ApplyDiscount reduces the order total. Above the policy threshold the
// mutation is queued for approval instead: the caller receives
// *domain.ApprovalRequiredError and must wait for the gate to resolve it.
func (s *Service) ApplyDiscount(ctx context.Context, amount decimal.Decimal, requestedBy, reason string) error {
	return s.gatedMutation(ctx, interfaces.ApprovalRequest{
		Operation:   "discount",
		OrderNumber: s.orderNumber(),
		Amount:      amount,
		RequestedBy: requestedBy,
		Reason:      reason,
	}, func(policy *interfaces.ApprovalPolicy) bool {
		return amount.GreaterThan(policy.DiscountThreshold)
	}, func() error {
		return s.applyDiscountLocal(amount)
	})
}

// RefundItems refunds a quantity of one order line, gated by the refund
// threshold.
func (s *Service) RefundItems(ctx context.Context, itemID, quantity int, requestedBy string) error {
	s.mu.Lock()
	item := s.findItemLocked(itemID)
	if item == nil {
		s.mu.Unlock()
		return domain.NewValidationError("item_id", "order item not found")
	}
	if quantity < 1 || quantity > item.Quantity-item.RefundedQuantity {
		s.mu.Unlock()
		return domain.NewValidationError("quantity", "refund quantity exceeds remaining quantity")
	}
	amount := item.PriceAtSale.Mul(decimal.NewFromInt(int64(quantity)))
	s.mu.Unlock()

	return s.gatedMutation(ctx, interfaces.ApprovalRequest{
		Operation:   "refund",
		OrderNumber: s.orderNumber(),
		Amount:      amount,
		RequestedBy: requestedBy,
	}, func(policy *interfaces.ApprovalPolicy) bool {
		return amount.GreaterThan(policy.RefundThreshold)
	}, func() error {
		return s.refundLocal(itemID, quantity)
	})
}

// OverridePrice changes a line's price at sale, gated by the override
// threshold on the size of the change.
func (s *Service) OverridePrice(ctx context.Context, itemID int, newPrice decimal.Decimal, requestedBy string) error {
	if newPrice.IsNegative() {
		return domain.NewValidationError("price", "price must not be negative")
	}

	s.mu.Lock()
	item := s.findItemLocked(itemID)
	if item == nil {
		s.mu.Unlock()
		return domain.NewValidationError("item_id", "order item not found")
	}
	delta := item.PriceAtSale.Sub(newPrice).Abs()
	s.mu.Unlock()

	return s.gatedMutation(ctx, interfaces.ApprovalRequest{
		Operation:   "price_override",
		OrderNumber: s.orderNumber(),
		Amount:      delta,
		RequestedBy: requestedBy,
	}, func(policy *interfaces.ApprovalPolicy) bool {
		return delta.GreaterThan(policy.PriceOverrideThreshold)
	}, func() error {
		return s.overridePriceLocal(itemID, newPrice)
	})
}

// VoidOrder voids the working order. Gated as a whole when the location
// policy requires it.
func (s *Service) VoidOrder(ctx context.Context, requestedBy string) error {
	s.mu.Lock()
	if s.order == nil {
		s.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	amount := s.order.Total
	s.mu.Unlock()

	return s.gatedMutation(ctx, interfaces.ApprovalRequest{
		Operation:   "void",
		OrderNumber: s.orderNumber(),
		Amount:      amount,
		RequestedBy: requestedBy,
	}, func(policy *interfaces.ApprovalPolicy) bool {
		return policy.VoidRequiresApproval
	}, func() error {
		return s.voidLocal()
	})
}

// gatedMutation runs apply directly when the policy allows it, otherwise
// submits an approval request and suspends the mutation on the gate until
// the decision resolves it.
func (s *Service) gatedMutation(ctx context.Context, req interfaces.ApprovalRequest, needsApproval func(*interfaces.ApprovalPolicy) bool, apply func() error) error {
	policy, err := s.loadPolicy(ctx)
	if err != nil {
		return err
	}

	if !needsApproval(policy) {
		return apply()
	}

	ticket, err := s.backend.SubmitApproval(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to submit approval request: %w", err)
	}

	s.mu.Lock()
	s.pending[ticket.RequestID] = pendingApproval{req: req, apply: apply}
	s.mu.Unlock()

	if s.gate != nil {
		if err := s.gate.Submit(ctx, *ticket, func(d interfaces.ApprovalDecision) error {
			if err := s.ResolveApproval(d); err != nil {
				s.logger.Error("approval_resolution_failed", "Approval decision rejected", d.RequestID, nil, err)
				return err
			}
			return nil
		}); err != nil {
			return fmt.Errorf("failed to register approval gate: %w", err)
		}
	}

	s.logger.Info("approval_pending", "Operation suspended pending approval", ticket.RequestID, map[string]interface{}{
		"operation": req.Operation,
		"order":     req.OrderNumber,
		"amount":    req.Amount.String(),
	})
	return &domain.ApprovalRequiredError{RequestID: ticket.RequestID, Operation: req.Operation}
}

// ResolveApproval consumes an external approval decision and, on approval,
// applies the suspended mutation. Self-approval is rejected when policy
// disallows it; the request stays pending for another approver.
func (s *Service) ResolveApproval(d interfaces.ApprovalDecision) error {
	s.mu.Lock()

	p, ok := s.pending[d.RequestID]
	if !ok {
		s.mu.Unlock()
		return domain.NewValidationError("request_id", "unknown approval request")
	}

	if d.Approved && d.DecidedBy == p.req.RequestedBy {
		if s.policy == nil || !s.policy.AllowSelfApproval {
			s.mu.Unlock()
			return &domain.PolicyViolationError{
				Policy: "self_approval",
				Detail: fmt.Sprintf("%s cannot approve their own %s request", d.DecidedBy, p.req.Operation),
			}
		}
	}

	delete(s.pending, d.RequestID)
	s.mu.Unlock()

	s.logger.Info("approval_resolved", "Approval decision received", d.RequestID, map[string]interface{}{
		"operation": p.req.Operation,
		"approved":  d.Approved,
		"by":        d.DecidedBy,
	})

	if !d.Approved {
		return nil
	}
	return p.apply()
}

// PendingApprovals lists request IDs still awaiting a decision.
func (s *Service) PendingApprovals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) loadPolicy(ctx context.Context) (*interfaces.ApprovalPolicy, error) {
	s.mu.Lock()
	if s.policy != nil {
		policy := s.policy
		s.mu.Unlock()
		return policy, nil
	}
	s.mu.Unlock()

	policy, err := s.backend.LookupPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up approval policy: %w", err)
	}

	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
	return policy, nil
}

func (s *Service) applyDiscountLocal(amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.order == nil || s.session == nil {
		return domain.ErrNoActiveSession
	}
	if len(s.session.Legs) > 0 {
		return domain.NewValidationError("discount", "cannot discount after a leg has settled")
	}
	if amount.GreaterThan(s.order.Total) {
		return domain.NewValidationError("discount", "discount exceeds order total")
	}

	s.order.Total = s.order.Total.Sub(amount)
	s.session.OrderTotal = s.order.Total
	s.session.BalanceDue = s.session.BalanceDue.Sub(amount)
	s.notifyLocked()
	return nil
}

func (s *Service) refundLocal(itemID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findItemLocked(itemID)
	if item == nil {
		return domain.NewValidationError("item_id", "order item not found")
	}
	item.RefundedQuantity += quantity
	s.recalculateLocked()
	return nil
}

func (s *Service) overridePriceLocal(itemID int, newPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findItemLocked(itemID)
	if item == nil {
		return domain.NewValidationError("item_id", "order item not found")
	}
	item.PriceAtSale = newPrice
	s.recalculateLocked()
	return nil
}

func (s *Service) voidLocal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.order == nil {
		return domain.ErrNoActiveSession
	}
	s.order.Status = domain.OrderVoided
	s.clearSessionLocked()
	return nil
}

// --- helpers ---

// applyLocked runs one event through the state machine and adopts the next
// state. Caller holds the lock and a session exists.
func (s *Service) applyLocked(ev domain.TenderEvent) ([]domain.Effect, error) {
	next, effects, err := domain.NextTenderState(s.session.State, ev)
	if err != nil {
		return nil, err
	}
	s.session.State = next
	return effects, nil
}

func hasEffect(effects []domain.Effect, want domain.Effect) bool {
	for _, e := range effects {
		if e == want {
			return true
		}
	}
	return false
}

func (s *Service) staleLocked(gen int) bool {
	return s.session == nil || s.session.Generation != gen
}

func (s *Service) clearSessionLocked() {
	if s.session != nil {
		s.session.Generation++
	}
	s.session = nil
	s.notifyLocked()
}

func (s *Service) recalculateLocked() {
	if s.order == nil {
		return
	}
	previous := s.order.Total
	s.order.CalculateTotal()
	if s.session != nil {
		delta := previous.Sub(s.order.Total)
		s.session.OrderTotal = s.order.Total
		s.session.BalanceDue = domain.ClampAmount(s.session.BalanceDue.Sub(delta))
	}
	s.notifyLocked()
}

func (s *Service) findItemLocked(itemID int) *domain.OrderItem {
	if s.order == nil {
		return nil
	}
	for i := range s.order.Items {
		if s.order.Items[i].ID == itemID {
			return &s.order.Items[i]
		}
	}
	return nil
}

func (s *Service) orderNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order != nil {
		return s.order.Number
	}
	return ""
}

func (s *Service) projectionLocked() interfaces.DisplayProjection {
	p := interfaces.DisplayProjection{
		TenderState: domain.TenderIdle,
		Total:       decimal.Zero,
		AmountDue:   decimal.Zero,
		ChangeDue:   decimal.Zero,
	}

	if s.order != nil {
		p.OrderNumber = s.order.Number
		p.Total = s.order.Total
		for _, item := range s.order.Items {
			p.Items = append(p.Items, interfaces.DisplayLine{
				Name:     item.Name,
				Quantity: item.Quantity - item.RefundedQuantity,
				Price:    item.PriceAtSale,
			})
		}
	}

	if s.session != nil {
		p.TenderState = s.session.State
		p.AmountDue = s.session.AmountOwed()
		p.ChangeDue = s.session.ChangeDue
	}
	return p
}

func (s *Service) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.projectionLocked())
	}
}
