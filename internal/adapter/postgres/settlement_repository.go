package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

type settlementRepository struct {
	db DB
}

// NewSettlementRepository journals committed tender legs. The
// idempotency-key unique index makes Record safe to repeat: a retried
// capture that already landed stores nothing new.
func NewSettlementRepository(db DB) interfaces.SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) Record(ctx context.Context, s *domain.Settlement) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO settlements (order_number, method, amount, surcharge, tip, change_due, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		s.OrderNumber, s.Method, s.Amount, s.Surcharge, s.Tip, s.ChangeDue, s.IdempotencyKey, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		// No row comes back when the key already exists; look the
		// original row up so the caller still gets its ID.
		existing, lookupErr := r.findByKey(ctx, s.IdempotencyKey)
		if lookupErr != nil {
			return fmt.Errorf("failed to insert settlement: %w", err)
		}
		s.ID = existing.ID
	}
	return nil
}

func (r *settlementRepository) ListByOrder(ctx context.Context, orderNumber string) ([]domain.Settlement, error) {
	query := `
		SELECT id, order_number, method, amount, surcharge, tip, change_due, idempotency_key, created_at
		FROM settlements
		WHERE order_number = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []domain.Settlement
	for rows.Next() {
		var s domain.Settlement
		if err := rows.Scan(&s.ID, &s.OrderNumber, &s.Method, &s.Amount, &s.Surcharge, &s.Tip, &s.ChangeDue, &s.IdempotencyKey, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	return settlements, nil
}

func (r *settlementRepository) TotalForOrder(ctx context.Context, orderNumber string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM settlements
		WHERE order_number = $1
	`
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, orderNumber).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum settlements: %w", err)
	}
	return total, nil
}

func (r *settlementRepository) findByKey(ctx context.Context, key string) (*domain.Settlement, error) {
	query := `
		SELECT id, order_number, method, amount, surcharge, tip, change_due, idempotency_key, created_at
		FROM settlements
		WHERE idempotency_key = $1
	`
	var s domain.Settlement
	err := r.db.QueryRow(ctx, query, key).Scan(
		&s.ID, &s.OrderNumber, &s.Method, &s.Amount, &s.Surcharge, &s.Tip, &s.ChangeDue, &s.IdempotencyKey, &s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("settlement not found: %w", err)
	}
	return &s, nil
}
