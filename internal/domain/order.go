package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the terminal's cached working copy of a backend order. The
// backend owns the durable record; the terminal mutates this copy only
// while tendering and reconciles through the backend afterwards.
type Order struct {
	ID        int
	Number    string
	Items     []OrderItem
	Total     decimal.Decimal
	Tip       decimal.Decimal
	Surcharge decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is one line of an order. ProductID 0 means a custom line with
// no catalog reference. Category and ProductType route the item to kitchen
// zones.
type OrderItem struct {
	ID               int
	OrderID          int
	ProductID        int
	Name             string
	Quantity         int
	PriceAtSale      decimal.Decimal
	RefundedQuantity int
	Category         string
	ProductType      string
	KitchenStatus    KitchenItemStatus
}

// CalculateTotal recomputes the order total from its lines, net of refunds.
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		qty := item.Quantity - item.RefundedQuantity
		if qty < 0 {
			qty = 0
		}
		total = total.Add(item.PriceAtSale.Mul(decimal.NewFromInt(int64(qty))))
	}
	o.Total = total
}

// GrandTotal is the amount the customer owes including surcharge and tip.
func (o *Order) GrandTotal() decimal.Decimal {
	return o.Total.Add(o.Surcharge).Add(o.Tip)
}
