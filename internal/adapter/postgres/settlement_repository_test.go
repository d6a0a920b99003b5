package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"poscore/internal/domain"
)

// fakeDB is an in-memory stand-in for the pgx pool, keyed on the queries
// the settlement repository issues.
type fakeDB struct {
	rows   []domain.Settlement
	nextID int
}

func newFakeDB() *fakeDB {
	return &fakeDB{nextID: 1}
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if strings.Contains(sql, "WHERE order_number") {
		var matched []domain.Settlement
		for _, row := range db.rows {
			if row.OrderNumber == args[0].(string) {
				matched = append(matched, row)
			}
		}
		return &fakeRows{rows: matched}, nil
	}
	return nil, errors.New("unexpected query")
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	switch {
	case strings.Contains(sql, "INSERT INTO settlements"):
		key := args[6].(string)
		for _, row := range db.rows {
			if row.IdempotencyKey == key {
				// ON CONFLICT DO NOTHING returns no row.
				return &fakeRow{err: errors.New("no rows in result set")}
			}
		}
		row := domain.Settlement{
			ID:             db.nextID,
			OrderNumber:    args[0].(string),
			Method:         args[1].(domain.PaymentMethod),
			Amount:         args[2].(decimal.Decimal),
			Surcharge:      args[3].(decimal.Decimal),
			Tip:            args[4].(decimal.Decimal),
			ChangeDue:      args[5].(decimal.Decimal),
			IdempotencyKey: key,
			CreatedAt:      args[7].(time.Time),
		}
		db.nextID++
		db.rows = append(db.rows, row)
		return &fakeRow{id: &row.ID}

	case strings.Contains(sql, "WHERE idempotency_key"):
		for _, row := range db.rows {
			if row.IdempotencyKey == args[0].(string) {
				settlement := row
				return &fakeRow{settlement: &settlement}
			}
		}
		return &fakeRow{err: errors.New("no rows in result set")}

	case strings.Contains(sql, "SUM(amount)"):
		total := decimal.Zero
		for _, row := range db.rows {
			if row.OrderNumber == args[0].(string) {
				total = total.Add(row.Amount)
			}
		}
		return &fakeRow{total: &total}

	default:
		return &fakeRow{err: errors.New("unexpected query")}
	}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return fakeTag{}, nil
}

func (db *fakeDB) Close() {}

type fakeTag struct{}

func (fakeTag) RowsAffected() int64 { return 0 }

type fakeRow struct {
	err        error
	id         *int
	total      *decimal.Decimal
	settlement *domain.Settlement
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch {
	case r.id != nil:
		*dest[0].(*int) = *r.id
	case r.total != nil:
		*dest[0].(*decimal.Decimal) = *r.total
	case r.settlement != nil:
		scanSettlement(*r.settlement, dest)
	}
	return nil
}

type fakeRows struct {
	rows []domain.Settlement
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	scanSettlement(r.rows[r.idx-1], dest)
	return nil
}

func (r *fakeRows) Close() {}

func scanSettlement(s domain.Settlement, dest []any) {
	*dest[0].(*int) = s.ID
	*dest[1].(*string) = s.OrderNumber
	*dest[2].(*domain.PaymentMethod) = s.Method
	*dest[3].(*decimal.Decimal) = s.Amount
	*dest[4].(*decimal.Decimal) = s.Surcharge
	*dest[5].(*decimal.Decimal) = s.Tip
	*dest[6].(*decimal.Decimal) = s.ChangeDue
	*dest[7].(*string) = s.IdempotencyKey
	*dest[8].(*time.Time) = s.CreatedAt
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSettlementRepository_Record(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	repo := NewSettlementRepository(db)

	leg := &domain.Settlement{
		OrderNumber:    "7001",
		Method:         domain.MethodCash,
		Amount:         dec("10.00"),
		IdempotencyKey: "key-1",
	}
	if err := repo.Record(ctx, leg); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if leg.ID == 0 {
		t.Error("ID not assigned")
	}
	if leg.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted")
	}

	t.Run("idempotent on key", func(t *testing.T) {
		duplicate := &domain.Settlement{
			OrderNumber:    "7001",
			Method:         domain.MethodCash,
			Amount:         dec("10.00"),
			IdempotencyKey: "key-1",
			CreatedAt:      time.Now(),
		}
		if err := repo.Record(ctx, duplicate); err != nil {
			t.Fatalf("duplicate Record: %v", err)
		}
		if duplicate.ID != leg.ID {
			t.Errorf("duplicate got new id %d, want %d", duplicate.ID, leg.ID)
		}
		if len(db.rows) != 1 {
			t.Errorf("rows stored: got %d, want 1", len(db.rows))
		}
	})
}

func TestSettlementRepository_ListAndTotal(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	repo := NewSettlementRepository(db)

	legs := []*domain.Settlement{
		{OrderNumber: "7001", Method: domain.MethodCash, Amount: dec("10.00"), IdempotencyKey: "key-1"},
		{OrderNumber: "7001", Method: domain.MethodCard, Amount: dec("13.47"), Surcharge: dec("0.20"), IdempotencyKey: "key-2"},
		{OrderNumber: "7002", Method: domain.MethodCash, Amount: dec("5.00"), IdempotencyKey: "key-3"},
	}
	for _, leg := range legs {
		if err := repo.Record(ctx, leg); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	listed, err := repo.ListByOrder(ctx, "7001")
	if err != nil {
		t.Fatalf("ListByOrder: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("settlements: got %d, want 2", len(listed))
	}
	if listed[1].Method != domain.MethodCard || !listed[1].Surcharge.Equal(dec("0.20")) {
		t.Errorf("second leg: %+v", listed[1])
	}

	total, err := repo.TotalForOrder(ctx, "7001")
	if err != nil {
		t.Fatalf("TotalForOrder: %v", err)
	}
	if !total.Equal(dec("23.47")) {
		t.Errorf("total: got %s, want 23.47", total)
	}

	t.Run("no settlements", func(t *testing.T) {
		listed, err := repo.ListByOrder(ctx, "7099")
		if err != nil {
			t.Fatalf("ListByOrder: %v", err)
		}
		if len(listed) != 0 {
			t.Errorf("settlements: got %d, want 0", len(listed))
		}
		total, err := repo.TotalForOrder(ctx, "7099")
		if err != nil {
			t.Fatalf("TotalForOrder: %v", err)
		}
		if !total.IsZero() {
			t.Errorf("total: got %s, want 0", total)
		}
	})
}
