package mariadb

import (
	"context"
	"fmt"

	"github.com/kozaktomas/clock-in/internal/database"
)

// AuditRepository stores capture outcomes in MariaDB.
type AuditRepository struct {
	pool *Pool
}

// NewAuditRepository creates an audit repository on pool.
func NewAuditRepository(pool *Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) SaveOutcome(ctx context.Context, outcome *database.StoredOutcome) error {
	query := "INSERT INTO capture_outcomes (" + database.InsertColumns + ") VALUES (" +
		database.Placeholders(database.Question, 12) + ")"
	res, err := r.pool.db.ExecContext(ctx, query, database.InsertArgs(outcome)...)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read outcome id: %w", err)
	}
	outcome.ID = id
	return nil
}

func (r *AuditRepository) ListOutcomes(ctx context.Context, opts database.ListOptions) ([]database.StoredOutcome, error) {
	query, args := database.ListQuery(database.Question, opts)
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return database.CollectOutcomes(rows)
}

func (r *AuditRepository) CountOutcomes(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM capture_outcomes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

func (r *AuditRepository) Close() error {
	return r.pool.Close()
}
