package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/clock-in/internal/config"
)

// Opener connects to a backend and prepares its schema.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (AuditStore, error)

type backend struct {
	name    string
	schemes []string
	open    Opener
}

var (
	backends   []backend
	backendsMu sync.RWMutex
)

// RegisterBackend registers an audit log backend for the given URL schemes.
// Backend packages are registered by the commands to avoid import cycles.
func RegisterBackend(name string, open Opener, schemes ...string) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends = slices.DeleteFunc(backends, func(b backend) bool { return b.name == name })
	backends = append(backends, backend{name: name, schemes: schemes, open: open})
}

// Scheme returns the lower-cased scheme of a database URL.
func Scheme(url string) string {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// Open opens the audit log selected by the URL scheme. An empty URL keeps
// the log in memory. It returns the name of the backend used.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (AuditStore, string, error) {
	if cfg == nil || cfg.URL == "" {
		return NewMemoryStore(DefaultMemoryCapacity), "memory", nil
	}

	scheme := Scheme(cfg.URL)
	backendsMu.RLock()
	var found *backend
	for i := range backends {
		if slices.Contains(backends[i].schemes, scheme) {
			found = &backends[i]
			break
		}
	}
	backendsMu.RUnlock()

	if found == nil {
		return nil, "", fmt.Errorf("unsupported database URL scheme %q", scheme)
	}

	store, err := found.open(ctx, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s audit log: %w", found.name, err)
	}
	return store, found.name, nil
}
