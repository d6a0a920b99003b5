package postgres

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS settlements (
    id SERIAL PRIMARY KEY,
    order_number TEXT NOT NULL,
    method TEXT NOT NULL,
    amount NUMERIC(10,2) NOT NULL,
    surcharge NUMERIC(10,2) NOT NULL DEFAULT 0,
    tip NUMERIC(10,2) NOT NULL DEFAULT 0,
    change_due NUMERIC(10,2) NOT NULL DEFAULT 0,
    idempotency_key TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settlements_order_number ON settlements(order_number);
`

// InitSchema creates the settlement journal tables if they do not exist.
func InitSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
