package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"poscore/internal/domain"
)

// DisplayLine is one cart line as the customer display renders it.
type DisplayLine struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// DisplayProjection is the read-only view of POS state pushed to the
// customer display. AmountDue reflects the active leg: the partial amount
// plus surcharge while a split is in progress, otherwise the balance due
// plus surcharge.
type DisplayProjection struct {
	OrderNumber string             `json:"order_number"`
	Items       []DisplayLine      `json:"items"`
	Total       decimal.Decimal    `json:"total"`
	TenderState domain.TenderState `json:"tender_state"`
	AmountDue   decimal.Decimal    `json:"amount_due"`
	ChangeDue   decimal.Decimal    `json:"change_due"`
}

// DisplayPublisher pushes projections to the customer display process.
type DisplayPublisher interface {
	PublishState(ctx context.Context, p DisplayProjection) error
}

// TipHandler consumes a tip amount selected on the customer display.
type TipHandler func(ctx context.Context, amount decimal.Decimal) error

// TipConsumer delivers customer-selected tips back to the terminal.
type TipConsumer interface {
	ConsumeTips(ctx context.Context, handler TipHandler) error
}
