package approval

import (
	"context"
	"errors"
	"testing"

	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

func TestGate_DeliverResolvesTicket(t *testing.T) {
	gate := NewGate()

	var got interfaces.ApprovalDecision
	err := gate.Submit(context.Background(), interfaces.ApprovalTicket{RequestID: "req-1"},
		func(d interfaces.ApprovalDecision) error {
			got = d
			return nil
		})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gate.Pending() != 1 {
		t.Fatalf("pending: got %d, want 1", gate.Pending())
	}

	decision := interfaces.ApprovalDecision{RequestID: "req-1", Approved: true, DecidedBy: "manager"}
	if err := gate.Deliver(decision); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got != decision {
		t.Errorf("decision: got %+v", got)
	}
	if gate.Pending() != 0 {
		t.Errorf("pending after deliver: got %d", gate.Pending())
	}

	t.Run("second delivery rejected", func(t *testing.T) {
		var verr *domain.ValidationError
		if err := gate.Deliver(decision); !errors.As(err, &verr) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestGate_PolicyRejectionKeepsTicket(t *testing.T) {
	gate := NewGate()

	var applied []string
	err := gate.Submit(context.Background(), interfaces.ApprovalTicket{RequestID: "req-1"},
		func(d interfaces.ApprovalDecision) error {
			if d.DecidedBy == "alice" {
				return &domain.PolicyViolationError{Policy: "self_approval", Detail: "alice cannot approve their own request"}
			}
			applied = append(applied, d.DecidedBy)
			return nil
		})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var violation *domain.PolicyViolationError
	err = gate.Deliver(interfaces.ApprovalDecision{RequestID: "req-1", Approved: true, DecidedBy: "alice"})
	if !errors.As(err, &violation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if gate.Pending() != 1 {
		t.Fatalf("ticket consumed by rejected decision: pending %d, want 1", gate.Pending())
	}

	if err := gate.Deliver(interfaces.ApprovalDecision{RequestID: "req-1", Approved: true, DecidedBy: "manager"}); err != nil {
		t.Fatalf("Deliver after rejection: %v", err)
	}
	if len(applied) != 1 || applied[0] != "manager" {
		t.Errorf("applied: got %v, want [manager]", applied)
	}
	if gate.Pending() != 0 {
		t.Errorf("pending after resolution: got %d", gate.Pending())
	}
}

func TestGate_SubmitValidation(t *testing.T) {
	gate := NewGate()
	noop := func(interfaces.ApprovalDecision) error { return nil }

	var verr *domain.ValidationError
	if err := gate.Submit(context.Background(), interfaces.ApprovalTicket{}, noop); !errors.As(err, &verr) {
		t.Errorf("empty request id: expected validation error, got %v", err)
	}

	if err := gate.Submit(context.Background(), interfaces.ApprovalTicket{RequestID: "req-1"}, noop); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := gate.Submit(context.Background(), interfaces.ApprovalTicket{RequestID: "req-1"}, noop); !errors.As(err, &verr) {
		t.Errorf("duplicate ticket: expected validation error, got %v", err)
	}
}

func TestGate_DeliverUnknownTicket(t *testing.T) {
	gate := NewGate()
	var verr *domain.ValidationError
	if err := gate.Deliver(interfaces.ApprovalDecision{RequestID: "ghost"}); !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}
