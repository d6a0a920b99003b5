package domain

import (
	"github.com/shopspring/decimal"
)

// TenderState is one step of the tender flow. The flow always starts idle
// and ends either complete (paid) or back at idle (cancelled).
type TenderState string

const (
	TenderIdle                     TenderState = "idle"
	TenderAwaitingPaymentMethod    TenderState = "awaiting_payment_method"
	TenderAwaitingCashAmount       TenderState = "awaiting_cash_amount"
	TenderAwaitingGiftCard         TenderState = "awaiting_gift_card"
	TenderAwaitingDeliveryPlatform TenderState = "awaiting_delivery_platform"
	TenderSplittingPayment         TenderState = "splitting_payment"
	TenderInitializingTerminal     TenderState = "initializing_terminal"
	TenderAwaitingTip              TenderState = "awaiting_tip"
	TenderProcessingPayment        TenderState = "processing_payment"
	TenderComplete                 TenderState = "complete"
	TenderPaymentError             TenderState = "payment_error"
)

type TenderEventKind string

const (
	EventOpenTender       TenderEventKind = "open_tender"
	EventSelectMethod     TenderEventKind = "select_method"
	EventTerminalReady    TenderEventKind = "terminal_ready"
	EventTipEntered       TenderEventKind = "tip_entered"
	EventSubmitAmount     TenderEventKind = "submit_amount"
	EventPaymentSucceeded TenderEventKind = "payment_succeeded"
	EventPaymentFailed    TenderEventKind = "payment_failed"
	EventRetry            TenderEventKind = "retry"
	EventGoBack           TenderEventKind = "go_back"
	EventCancel           TenderEventKind = "cancel"
	EventStartNewOrder    TenderEventKind = "start_new_order"
)

// TenderEvent is one input to the tender state machine. Method is set for
// select_method; Final is set for payment_succeeded and reports whether the
// leg settled the full remaining balance.
type TenderEvent struct {
	Kind   TenderEventKind
	Method PaymentMethod
	Final  bool
}

// Effect is a side effect the orchestrator must perform after a
// transition. The state machine itself performs no I/O.
type Effect string

const (
	EffectInitializeTerminal Effect = "initialize_terminal"
	EffectCapturePayment     Effect = "capture_payment"
	EffectClearSession       Effect = "clear_session"
)

// goBackStates are the only states from which back-navigation to the
// payment method screen is permitted.
var goBackStates = map[TenderState]bool{
	TenderAwaitingCashAmount:       true,
	TenderAwaitingGiftCard:         true,
	TenderAwaitingDeliveryPlatform: true,
	TenderAwaitingTip:              true,
	TenderPaymentError:             true,
	TenderSplittingPayment:         true,
}

// methodStates maps a selected payment method to the state that collects
// its input. Card payments route through the terminal handshake first.
var methodStates = map[PaymentMethod]TenderState{
	MethodCash:             TenderAwaitingCashAmount,
	MethodCard:             TenderInitializingTerminal,
	MethodGiftCard:         TenderAwaitingGiftCard,
	MethodDeliveryPlatform: TenderAwaitingDeliveryPlatform,
	MethodSplit:            TenderSplittingPayment,
}

// submitStates are the states whose "submit" input moves the flow into
// processing_payment. The split-amount screen instead returns to method
// selection so the operator can choose how to pay the entered leg.
var submitStates = map[TenderState]bool{
	TenderAwaitingCashAmount:       true,
	TenderAwaitingGiftCard:         true,
	TenderAwaitingDeliveryPlatform: true,
}

// NextTenderState is the tender state machine: a pure mapping from the
// current state and an event to the next state and the side effects the
// caller must run. An invalid pair leaves the state unchanged, returns no
// effects and reports ErrInvalidTenderTransition.
func NextTenderState(state TenderState, ev TenderEvent) (TenderState, []Effect, error) {
	switch ev.Kind {
	case EventOpenTender:
		if state == TenderIdle {
			return TenderAwaitingPaymentMethod, nil, nil
		}

	case EventSelectMethod:
		if state == TenderAwaitingPaymentMethod {
			next, ok := methodStates[ev.Method]
			if !ok {
				return state, nil, ErrInvalidTenderTransition
			}
			if next == TenderInitializingTerminal {
				return next, []Effect{EffectInitializeTerminal}, nil
			}
			return next, nil, nil
		}

	case EventTerminalReady:
		if state == TenderInitializingTerminal {
			return TenderAwaitingTip, nil, nil
		}

	case EventTipEntered:
		if state == TenderAwaitingTip {
			return TenderProcessingPayment, []Effect{EffectCapturePayment}, nil
		}

	case EventSubmitAmount:
		if submitStates[state] {
			return TenderProcessingPayment, []Effect{EffectCapturePayment}, nil
		}
		if state == TenderSplittingPayment {
			return TenderAwaitingPaymentMethod, nil, nil
		}

	case EventPaymentSucceeded:
		if state == TenderProcessingPayment {
			if ev.Final {
				return TenderComplete, nil, nil
			}
			return TenderAwaitingPaymentMethod, nil, nil
		}

	case EventPaymentFailed:
		if state == TenderProcessingPayment || state == TenderInitializingTerminal {
			return TenderPaymentError, nil, nil
		}

	case EventRetry:
		if state == TenderPaymentError {
			return TenderProcessingPayment, []Effect{EffectCapturePayment}, nil
		}

	case EventGoBack:
		if goBackStates[state] {
			return TenderAwaitingPaymentMethod, nil, nil
		}

	case EventCancel:
		if state != TenderIdle && state != TenderComplete {
			return TenderIdle, []Effect{EffectClearSession}, nil
		}

	case EventStartNewOrder:
		if state == TenderComplete {
			return TenderIdle, []Effect{EffectClearSession}, nil
		}
	}

	return state, nil, ErrInvalidTenderTransition
}

// PaymentAttempt captures the exact parameters of a submitted capture so a
// retry after payment_error re-issues them verbatim, amount included. The
// idempotency key is minted once per attempt and reused on retry so the
// backend cannot settle the same leg twice.
type PaymentAttempt struct {
	Method         PaymentMethod
	Amount         decimal.Decimal
	Surcharge      decimal.Decimal
	Tip            decimal.Decimal
	TenderedAmount decimal.Decimal
	GiftCardToken  string
	PlatformID     string
	IdempotencyKey string
}

// TenderSession is the ephemeral state of one open tender flow. It is
// created when tendering starts and destroyed on completion of a new-order
// or an explicit cancel. Exactly one writer (the orchestrator) mutates it.
type TenderSession struct {
	State           TenderState
	OrderNumber     string
	OrderTotal      decimal.Decimal
	BalanceDue      decimal.Decimal
	PartialAmount   decimal.Decimal
	SurchargeAmount decimal.Decimal
	ChangeDue       decimal.Decimal
	TipAmount       decimal.Decimal
	PaymentMethod   PaymentMethod
	LastError       string

	Legs        []Settlement
	LastAttempt *PaymentAttempt

	// Generation guards against late backend responses: it is bumped on
	// every reset so a result captured under an older generation is
	// discarded instead of being applied to a session that no longer
	// exists.
	Generation int
}

// NewTenderSession opens a session for an order with the whole total due.
func NewTenderSession(orderNumber string, total decimal.Decimal) *TenderSession {
	return &TenderSession{
		State:       TenderIdle,
		OrderNumber: orderNumber,
		OrderTotal:  total,
		BalanceDue:  total,
	}
}

// LegAmount is the base amount owed for the current leg, before surcharge
// and tip: the partial amount while splitting, otherwise the full balance.
func (s *TenderSession) LegAmount() decimal.Decimal {
	if s.PartialAmount.IsPositive() {
		return s.PartialAmount
	}
	return s.BalanceDue
}

// AmountOwed is what the customer pays for the current leg including the
// leg's surcharge.
func (s *TenderSession) AmountOwed() decimal.Decimal {
	return s.LegAmount().Add(s.SurchargeAmount)
}

// CommitLeg folds a settled leg into the session: the balance drops by the
// leg's base amount, the leg is recorded, and per-leg fields reset for the
// next leg. Reports whether the balance is now fully settled.
func (s *TenderSession) CommitLeg(leg Settlement) bool {
	s.BalanceDue = s.BalanceDue.Sub(leg.Amount)
	if s.BalanceDue.IsNegative() {
		s.BalanceDue = decimal.Zero
	}
	s.Legs = append(s.Legs, leg)
	s.PartialAmount = decimal.Zero
	s.SurchargeAmount = decimal.Zero
	s.TipAmount = decimal.Zero
	s.LastAttempt = nil
	s.LastError = ""
	return s.BalanceDue.IsZero()
}

// CommittedTotal is the sum of base amounts across settled legs.
func (s *TenderSession) CommittedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, leg := range s.Legs {
		total = total.Add(leg.Amount)
	}
	return total
}

// CheckBalance verifies the tender invariant: balance due plus committed
// legs always equals the order total.
func (s *TenderSession) CheckBalance() bool {
	return s.BalanceDue.Add(s.CommittedTotal()).Equal(s.OrderTotal)
}

// ComputeSurcharge is the per-leg card-processing fee: rate times the leg
// amount, rounded to cents, card legs only.
func ComputeSurcharge(method PaymentMethod, legAmount, rate decimal.Decimal) decimal.Decimal {
	if !method.SurchargeApplies() {
		return decimal.Zero
	}
	return legAmount.Mul(rate).Round(2)
}

// ClampAmount floors an operator-entered amount at zero. A negative
// tendered amount must never produce a negative change due.
func ClampAmount(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
