package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is one committed tender leg. It is the terminal's durable
// record of money taken: once a capture confirms, the leg is journaled
// before the session moves on. Amount is the base amount applied to the
// order balance; Surcharge and Tip are on top of it.
type Settlement struct {
	ID             int
	OrderNumber    string
	Method         PaymentMethod
	Amount         decimal.Decimal
	Surcharge      decimal.Decimal
	Tip            decimal.Decimal
	ChangeDue      decimal.Decimal
	IdempotencyKey string
	CreatedAt      time.Time
}
