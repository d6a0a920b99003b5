package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

type nopLogger struct{}

func (nopLogger) Info(action, message, requestID string, details map[string]interface{})  {}
func (nopLogger) Debug(action, message, requestID string, details map[string]interface{}) {}
func (nopLogger) Error(action, message, requestID string, details map[string]interface{}, err error) {
}

type publisherMock struct {
	mu        sync.Mutex
	published []interfaces.DisplayProjection
}

func (p *publisherMock) PublishState(ctx context.Context, projection interfaces.DisplayProjection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, projection)
	return nil
}

func (p *publisherMock) snapshot() []interfaces.DisplayProjection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interfaces.DisplayProjection(nil), p.published...)
}

func projection(state domain.TenderState, due string) interfaces.DisplayProjection {
	amount, _ := decimal.NewFromString(due)
	return interfaces.DisplayProjection{
		OrderNumber: "7001",
		TenderState: state,
		AmountDue:   amount,
	}
}

func waitForPublishes(t *testing.T, pub *publisherMock, want int) []interfaces.DisplayProjection {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := pub.snapshot(); len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d publishes, got %d", want, len(pub.snapshot()))
	return nil
}

func TestBridge_DebouncesToLatest(t *testing.T) {
	pub := &publisherMock{}
	bridge := NewBridge(pub, nopLogger{}, 30*time.Millisecond)
	defer bridge.Close()

	// A burst of intermediate recomputations; only the settled one should
	// reach the display.
	bridge.Update(projection(domain.TenderAwaitingPaymentMethod, "23.47"))
	bridge.Update(projection(domain.TenderAwaitingCashAmount, "23.47"))
	bridge.Update(projection(domain.TenderProcessingPayment, "23.47"))
	bridge.Update(projection(domain.TenderComplete, "0.00"))

	published := waitForPublishes(t, pub, 1)
	if len(published) != 1 {
		t.Fatalf("publishes: got %d, want 1", len(published))
	}
	if published[0].TenderState != domain.TenderComplete {
		t.Errorf("published state: got %s, want %s", published[0].TenderState, domain.TenderComplete)
	}
	if !published[0].AmountDue.IsZero() {
		t.Errorf("published amount due: got %s, want 0", published[0].AmountDue)
	}

	// Quiet period over: the next update publishes on its own.
	bridge.Update(projection(domain.TenderIdle, "0.00"))
	published = waitForPublishes(t, pub, 2)
	if published[1].TenderState != domain.TenderIdle {
		t.Errorf("second publish: got %s", published[1].TenderState)
	}
}

func TestBridge_FlushBypassesDebounce(t *testing.T) {
	pub := &publisherMock{}
	bridge := NewBridge(pub, nopLogger{}, time.Hour)
	defer bridge.Close()

	bridge.Update(projection(domain.TenderAwaitingTip, "23.82"))
	bridge.Flush()

	published := waitForPublishes(t, pub, 1)
	if published[0].TenderState != domain.TenderAwaitingTip {
		t.Errorf("flushed state: got %s", published[0].TenderState)
	}
}

func TestBridge_CloseCancelsPendingPush(t *testing.T) {
	pub := &publisherMock{}
	bridge := NewBridge(pub, nopLogger{}, 20*time.Millisecond)

	bridge.Update(projection(domain.TenderAwaitingCashAmount, "23.47"))
	bridge.Close()

	time.Sleep(60 * time.Millisecond)
	if got := len(pub.snapshot()); got != 0 {
		t.Errorf("publishes after close: got %d, want 0", got)
	}

	// Updates after close are ignored.
	bridge.Update(projection(domain.TenderComplete, "0.00"))
	time.Sleep(60 * time.Millisecond)
	if got := len(pub.snapshot()); got != 0 {
		t.Errorf("publishes after closed update: got %d, want 0", got)
	}
}
