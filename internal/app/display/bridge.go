package display

import (
	"context"
	"sync"
	"time"

	"poscore/internal/adapter/logger"
	"poscore/internal/interfaces"
)

const defaultDebounce = 50 * time.Millisecond

// Bridge pushes POS state projections to the customer display, one way.
// Updates are debounced on the trailing edge: while the orchestrator is
// still recomputing, nothing goes out; only the settled projection is
// published. The second screen is a read-only mirror, so a dropped
// intermediate frame is harmless and the final one always lands.
type Bridge struct {
	publisher interfaces.DisplayPublisher
	logger    logger.Logger
	debounce  time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	latest interfaces.DisplayProjection
	closed bool
}

func NewBridge(publisher interfaces.DisplayPublisher, lgr logger.Logger, debounce time.Duration) *Bridge {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Bridge{
		publisher: publisher,
		logger:    lgr,
		debounce:  debounce,
	}
}

// Update records the newest projection and re-arms the debounce timer.
// Safe to call from the orchestrator's change callback.
func (b *Bridge) Update(p interfaces.DisplayProjection) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest = p

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.debounce, b.flush)
}

// Flush publishes the latest projection immediately, bypassing the
// debounce. Used on startup so the second screen is not blank until the
// first mutation.
func (b *Bridge) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	b.flush()
}

// Close cancels any pending push.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Bridge) flush() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	projection := b.latest
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.publisher.PublishState(ctx, projection); err != nil {
		b.logger.Error("display_publish_failed", "Failed to push state to customer display", projection.OrderNumber, nil, err)
	}
}
