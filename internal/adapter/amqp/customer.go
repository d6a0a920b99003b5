package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"poscore/internal/adapter/rabbitmq"
	"poscore/internal/interfaces"
)

// StateHandler receives each projection pushed by the terminal.
type StateHandler func(ctx context.Context, p interfaces.DisplayProjection)

// StateConsumer is the customer-display side of the state channel: it
// binds a private queue to the fanout exchange and mirrors whatever the
// terminal publishes.
type StateConsumer struct {
	conn rabbitmq.Connection
}

func NewStateConsumer(conn rabbitmq.Connection) *StateConsumer {
	return &StateConsumer{conn: conn}
}

func (c *StateConsumer) ConsumeState(ctx context.Context, handler StateHandler) error {
	for {
		err := c.consumeWithReconnect(ctx, handler)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		log.Printf("State consumer disconnected: %v. Reconnecting in 5 seconds...", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *StateConsumer) consumeWithReconnect(ctx context.Context, handler StateHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.ExchangeDeclare(StateExchange, "fanout", false, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", StateExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
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

			var projection interfaces.DisplayProjection
			if err := json.Unmarshal(msg.Body, &projection); err != nil {
				log.Printf("Dropping malformed projection: %v", err)
				continue
			}
			handler(ctx, projection)
		}
	}
}

// TipPublisher sends a tip selected on the customer display back to the
// terminal.
type TipPublisher struct {
	conn rabbitmq.Connection
}

func NewTipPublisher(conn rabbitmq.Connection) *TipPublisher {
	return &TipPublisher{conn: conn}
}

func (p *TipPublisher) PublishTip(ctx context.Context, amount decimal.Decimal) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(TipQueue, false, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare tip queue: %w", err)
	}

	body, err := json.Marshal(TipMessage{Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to marshal tip: %w", err)
	}

	err = ch.Publish("", TipQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish tip: %w", err)
	}
	return nil
}
