package database

import (
	"context"
)

// AuditWriter records closed capture sessions
type AuditWriter interface {
	// SaveOutcome stores an outcome and sets its ID
	SaveOutcome(ctx context.Context, outcome *StoredOutcome) error
}

// AuditReader provides read-only access to the audit log
type AuditReader interface {
	// ListOutcomes returns outcomes newest first
	ListOutcomes(ctx context.Context, opts ListOptions) ([]StoredOutcome, error)
	// CountOutcomes returns the total number of stored outcomes
	CountOutcomes(ctx context.Context) (int, error)
}

// AuditStore is a complete audit log backend
type AuditStore interface {
	AuditWriter
	AuditReader
	Close() error
}
