package approval

import (
	"context"
	"errors"
	"sync"

	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

// Gate is an in-process approval gate: suspended operations register a
// decision callback per ticket, and Deliver resolves them when the
// approval service (or a manager device) reports back. A ticket stays
// registered until a decision is accepted by its callback, so a blocked
// self-approval still leaves the request open for another approver.
type Gate struct {
	mu      sync.Mutex
	waiters map[string]func(interfaces.ApprovalDecision) error
}

func NewGate() *Gate {
	return &Gate{
		waiters: make(map[string]func(interfaces.ApprovalDecision) error),
	}
}

func (g *Gate) Submit(ctx context.Context, ticket interfaces.ApprovalTicket, onDecision func(interfaces.ApprovalDecision) error) error {
	if ticket.RequestID == "" {
		return domain.NewValidationError("request_id", "approval ticket has no request id")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.waiters[ticket.RequestID]; exists {
		return domain.NewValidationError("request_id", "approval request already registered")
	}
	g.waiters[ticket.RequestID] = onDecision
	return nil
}

// Deliver resolves one pending ticket. Unknown tickets report a
// validation error so a duplicate decision is visible to the caller.
// A decision the callback rejects for policy reasons re-registers the
// ticket instead of consuming it.
func (g *Gate) Deliver(d interfaces.ApprovalDecision) error {
	g.mu.Lock()
	waiter, ok := g.waiters[d.RequestID]
	if ok {
		delete(g.waiters, d.RequestID)
	}
	g.mu.Unlock()

	if !ok {
		return domain.NewValidationError("request_id", "no pending approval for request")
	}

	if err := waiter(d); err != nil {
		var violation *domain.PolicyViolationError
		if errors.As(err, &violation) {
			g.mu.Lock()
			g.waiters[d.RequestID] = waiter
			g.mu.Unlock()
		}
		return err
	}
	return nil
}

// Pending reports how many tickets still await a decision.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}
