package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/kozaktomas/clock-in/internal/database"
	_ "modernc.org/sqlite"
)

// AuditRepository stores capture outcomes in a local SQLite file.
type AuditRepository struct {
	db *sql.DB
}

// PathFromURL strips the sqlite:// prefix. sqlite:///var/lib/x.db and
// sqlite://data/x.db give an absolute and a relative path.
func PathFromURL(raw string) (string, error) {
	path, ok := strings.CutPrefix(raw, "sqlite://")
	if !ok {
		return "", fmt.Errorf("not a sqlite URL: %q", raw)
	}
	if path == "" {
		return "", errors.New("sqlite URL must name a file")
	}
	return path, nil
}

// NewAuditRepository opens the database file at path and creates the schema.
func NewAuditRepository(ctx context.Context, path string) (*AuditRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	r := &AuditRepository{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Open satisfies database.Opener.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (database.AuditStore, error) {
	path, err := PathFromURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	return NewAuditRepository(ctx, path)
}

// Register makes sqlite:// URLs open this backend.
func Register() {
	database.RegisterBackend("sqlite", Open, "sqlite")
}

func (r *AuditRepository) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS capture_outcomes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  type TEXT NOT NULL,
  result TEXT NOT NULL,
  phase TEXT NOT NULL,
  provenance TEXT NOT NULL DEFAULT '',
  latitude REAL,
  longitude REAL,
  record_status TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL DEFAULT '',
  opened_at DATETIME NOT NULL,
  closed_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_capture_outcomes_closed_at ON capture_outcomes(closed_at);
CREATE INDEX IF NOT EXISTS idx_capture_outcomes_session ON capture_outcomes(session_id);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create capture_outcomes table: %w", err)
	}
	return nil
}

func (r *AuditRepository) SaveOutcome(ctx context.Context, outcome *database.StoredOutcome) error {
	query := "INSERT INTO capture_outcomes (" + database.InsertColumns + ") VALUES (" +
		database.Placeholders(database.Question, 12) + ")"
	res, err := r.db.ExecContext(ctx, query, database.InsertArgs(outcome)...)
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
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return database.CollectOutcomes(rows)
}

func (r *AuditRepository) CountOutcomes(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM capture_outcomes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

func (r *AuditRepository) Close() error {
	return r.db.Close()
}
