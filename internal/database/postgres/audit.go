package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/clock-in/internal/database"
)

// AuditRepository stores capture outcomes in PostgreSQL.
type AuditRepository struct {
	pool *Pool
}

// NewAuditRepository creates an audit repository on pool.
func NewAuditRepository(pool *Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) SaveOutcome(ctx context.Context, outcome *database.StoredOutcome) error {
	query := "INSERT INTO capture_outcomes (" + database.InsertColumns + ") VALUES (" +
		database.Placeholders(database.Dollar, 12) + ") RETURNING id"
	if err := r.pool.QueryRow(ctx, query, database.InsertArgs(outcome)...).Scan(&outcome.ID); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListOutcomes(ctx context.Context, opts database.ListOptions) ([]database.StoredOutcome, error) {
	query, args := database.ListQuery(database.Dollar, opts)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return database.CollectOutcomes(rows)
}

func (r *AuditRepository) CountOutcomes(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM capture_outcomes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

func (r *AuditRepository) Close() error {
	return r.pool.Close()
}
