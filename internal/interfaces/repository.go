package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"poscore/internal/domain"
)

// SettlementRepository is the terminal's durable journal of committed
// tender legs. Record is idempotent on the settlement's idempotency key:
// recording the same key twice stores one row.
type SettlementRepository interface {
	Record(ctx context.Context, s *domain.Settlement) error
	ListByOrder(ctx context.Context, orderNumber string) ([]domain.Settlement, error)
	TotalForOrder(ctx context.Context, orderNumber string) (decimal.Decimal, error)
}
