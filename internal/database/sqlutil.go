package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// OutcomeColumns lists the capture_outcomes columns in scan order.
const OutcomeColumns = "id, session_id, type, result, phase, provenance, latitude, longitude, record_status, message, error, opened_at, closed_at"

// InsertColumns lists the capture_outcomes columns written on insert.
const InsertColumns = "session_id, type, result, phase, provenance, latitude, longitude, record_status, message, error, opened_at, closed_at"

// InsertArgs returns the values for InsertColumns.
func InsertArgs(o *StoredOutcome) []any {
	return []any{
		o.SessionID, o.Type, o.Result, o.Phase, o.Provenance,
		nullFloat(o.Latitude), nullFloat(o.Longitude),
		o.RecordStatus, o.Message, o.Error,
		o.OpenedAt.UTC(), o.ClosedAt.UTC(),
	}
}

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanOutcome reads one row selected with OutcomeColumns.
func ScanOutcome(row Scanner) (StoredOutcome, error) {
	var (
		o        StoredOutcome
		lat, lng sql.NullFloat64
	)
	err := row.Scan(&o.ID, &o.SessionID, &o.Type, &o.Result, &o.Phase, &o.Provenance,
		&lat, &lng, &o.RecordStatus, &o.Message, &o.Error, &o.OpenedAt, &o.ClosedAt)
	if err != nil {
		return StoredOutcome{}, fmt.Errorf("scan outcome: %w", err)
	}
	if lat.Valid {
		o.Latitude = &lat.Float64
	}
	if lng.Valid {
		o.Longitude = &lng.Float64
	}
	o.OpenedAt = o.OpenedAt.UTC()
	o.ClosedAt = o.ClosedAt.UTC()
	return o, nil
}

// Placeholder renders the n-th (1-based) bind parameter of a SQL dialect.
type Placeholder func(n int) string

// Dollar renders PostgreSQL placeholders ($1, $2, ...).
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Question renders MySQL and SQLite placeholders.
func Question(int) string { return "?" }

// Placeholders renders count comma-separated placeholders starting at 1.
func Placeholders(ph Placeholder, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

// ListQuery builds the SELECT used by ListOutcomes.
func ListQuery(ph Placeholder, opts ListOptions) (string, []any) {
	var (
		where []string
		args  []any
	)
	if opts.Type != "" {
		args = append(args, opts.Type)
		where = append(where, "type = "+ph(len(args)))
	}
	if opts.Result != "" {
		args = append(args, opts.Result)
		where = append(where, "result = "+ph(len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + OutcomeColumns + " FROM capture_outcomes")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY closed_at DESC, id DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		b.WriteString(" LIMIT " + ph(len(args)))
	}
	return b.String(), args
}

// CollectOutcomes scans all rows and closes them.
func CollectOutcomes(rows *sql.Rows) ([]StoredOutcome, error) {
	defer rows.Close()

	var out []StoredOutcome
	for rows.Next() {
		o, err := ScanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
