package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"poscore/internal/adapter/rabbitmq"
	"poscore/internal/interfaces"
)

// TipMessage carries a tip amount selected on the customer display back to
// the terminal.
type TipMessage struct {
	Amount decimal.Decimal `json:"amount"`
}

type tipConsumer struct {
	conn rabbitmq.Connection
}

// NewTipConsumer consumes customer-selected tips. The handler decides
// whether the tender is in a state to accept one; a rejected tip is
// dropped, not requeued, since the selection is only meaningful while the
// tip prompt is up.
func NewTipConsumer(conn rabbitmq.Connection) interfaces.TipConsumer {
	return &tipConsumer{conn: conn}
}

func (c *tipConsumer) ConsumeTips(ctx context.Context, handler interfaces.TipHandler) error {
	for {
		err := c.consumeWithReconnect(ctx, handler)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		log.Printf("Tip consumer disconnected: %v. Reconnecting in 5 seconds...", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *tipConsumer) consumeWithReconnect(ctx context.Context, handler interfaces.TipHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if _, err := ch.QueueDeclare(TipQueue, false, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare tip queue: %w", err)
	}

	msgs, err := ch.Consume(TipQueue, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			var tip TipMessage
			if err := json.Unmarshal(msg.Body, &tip); err != nil {
				log.Printf("Dropping malformed tip message: %v", err)
				continue
			}

			// A tip arriving outside awaiting_tip is stale input from the
			// second screen; the handler rejects it and we move on.
			_ = handler(ctx, tip.Amount)
		}
	}
}
