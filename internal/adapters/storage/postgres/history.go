package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-service/internal/core/domain"
)

// HistoryRepository is an implementation of the HistoryStore port for
// PostgreSQL.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new repository instance. Accepts a DSN
// (Data Source Name) to connect to.
func NewHistoryRepository(ctx context.Context, dsn string) (*HistoryRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &HistoryRepository{pool: pool}, nil
}

// Close closes the connection pool.
func (r *HistoryRepository) Close() {
	r.pool.Close()
}

func (r *HistoryRepository) HasHistory(ctx context.Context, itemID int) (bool, error) {
	const sql = `SELECT EXISTS (SELECT 1 FROM purchase_history WHERE item_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, sql, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query purchase history: %w", err)
	}
	return exists, nil
}

func (r *HistoryRepository) CountHistory(ctx context.Context, itemID int) (int, error) {
	const sql = `SELECT COUNT(*) FROM purchase_history WHERE item_id = $1`

	var n int
	if err := r.pool.QueryRow(ctx, sql, itemID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count purchase history: %w", err)
	}
	return n, nil
}

// SaveHistory writes one purchase record. The transaction id is the
// conflict key, so a retried write of the same record is a no-op rather
// than a duplicate row.
func (r *HistoryRepository) SaveHistory(ctx context.Context, itemID int, rec domain.PurchaseRecord) error {
	const sql = `
		INSERT INTO purchase_history
		    (item_id, transaction_id, purchased_at, rewards)
		VALUES
		    ($1, $2, $3, $4)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	rewards, err := json.Marshal(rec.Rewards)
	if err != nil {
		return fmt.Errorf("failed to marshal rewards snapshot: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, itemID, rec.TransactionID, rec.PurchasedAt, rewards); err != nil {
		return fmt.Errorf("failed to save purchase record: %w", err)
	}
	return nil
}

func (r *HistoryRepository) RemoveHistory(ctx context.Context, itemID int) error {
	const sql = `DELETE FROM purchase_history WHERE item_id = $1`

	if _, err := r.pool.Exec(ctx, sql, itemID); err != nil {
		return fmt.Errorf("failed to remove purchase history: %w", err)
	}
	return nil
}

func (r *HistoryRepository) ClearAllHistory(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM purchase_history`); err != nil {
		return fmt.Errorf("failed to clear purchase history: %w", err)
	}
	return nil
}
