package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"poscore/internal/adapter/rabbitmq"
	"poscore/internal/interfaces"
)

// Channel names of the customer-display IPC contract.
const (
	StateExchange = "POS_TO_CUSTOMER_STATE"
	TipQueue      = "CUSTOMER_TO_POS_TIP"
)

type displayPublisher struct {
	conn rabbitmq.Connection
}

// NewDisplayPublisher publishes display projections on a fanout exchange
// so every customer-facing screen attached to the terminal mirrors the
// same state.
func NewDisplayPublisher(conn rabbitmq.Connection) interfaces.DisplayPublisher {
	return &displayPublisher{conn: conn}
}

func (p *displayPublisher) PublishState(ctx context.Context, projection interfaces.DisplayProjection) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(StateExchange, "fanout", false, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	body, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("failed to marshal projection: %w", err)
	}

	err = ch.Publish(StateExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish projection: %w", err)
	}

	return nil
}
