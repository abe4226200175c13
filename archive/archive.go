// Package archive persists terminal orders and settled settlements to
// Postgres for reconciliation and audit retention (spec §9 "purge terminal
// entities into an archival sink") once the in-memory core has no further
// use for them. It is a write-behind sink, not a system of record: the core
// never reads back through this package during normal operation.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/oms"
	"github.com/epic1st/fxcore/settlement"
)

// Store owns the connection pool and the archival writes.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pooled connection to Postgres using cfg and ensures the
// archival tables exist.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to open connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: failed to ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS archived_orders (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		currency_pair VARCHAR(16) NOT NULL,
		side VARCHAR(8) NOT NULL,
		order_type VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		original_quantity VARCHAR(64) NOT NULL,
		filled_quantity VARCHAR(64) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS archived_settlements (
		id VARCHAR(64) PRIMARY KEY,
		trade_id VARCHAR(64) NOT NULL,
		order_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		counterparty_id VARCHAR(64) NOT NULL,
		currency_pair VARCHAR(16) NOT NULL,
		status VARCHAR(32) NOT NULL,
		net_amount VARCHAR(64) NOT NULL,
		batch_id VARCHAR(64),
		settlement_date TIMESTAMPTZ NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_archived_orders_user ON archived_orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_archived_settlements_user ON archived_settlements(user_id);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("archive: failed to initialize schema: %w", err)
	}
	return nil
}

// ArchiveOrder persists a terminal order. Callers should only archive
// orders whose Status is one of the terminal states (filled/cancelled/
// expired/rejected) — archiving a live order would desync the core from
// its own archive.
func (s *Store) ArchiveOrder(ctx context.Context, order *oms.Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archived_orders
			(id, user_id, currency_pair, side, order_type, status, original_quantity, filled_quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			filled_quantity = EXCLUDED.filled_quantity,
			archived_at = now()
	`, order.ID, order.UserID, order.CurrencyPair, string(order.Side), string(order.OrderType),
		string(order.Status), order.OriginalQuantity.String(), order.FilledQuantity.String(), order.CreatedAt)
	if err != nil {
		return fmt.Errorf("archive: failed to archive order %s: %w", order.ID, err)
	}
	return nil
}

// ArchiveSettlement persists a settled or failed Settlement.
func (s *Store) ArchiveSettlement(ctx context.Context, st *settlement.Settlement) error {
	var batchID *string
	if st.BatchID != "" {
		batchID = &st.BatchID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archived_settlements
			(id, trade_id, order_id, user_id, counterparty_id, currency_pair, status, net_amount, batch_id, settlement_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			batch_id = EXCLUDED.batch_id,
			archived_at = now()
	`, st.ID, st.TradeID, st.OrderID, st.UserID, st.CounterpartyID, st.CurrencyPair,
		string(st.Status), st.NetAmount.String(), batchID, st.SettlementDate)
	if err != nil {
		return fmt.Errorf("archive: failed to archive settlement %s: %w", st.ID, err)
	}
	return nil
}

// CountArchivedOrders is a light diagnostic used by health checks.
func (s *Store) CountArchivedOrders(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM archived_orders`).Scan(&count)
	if err != nil && err != pgx.ErrNoRows {
		return 0, err
	}
	return count, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
