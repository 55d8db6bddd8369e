package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind string // postgres | sqlite | mssql | mysql
	DSN  string
}

// Opener opens a Conn for one backend kind.
type Opener func(ctx context.Context, cfg Config) (Conn, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register registers (or replaces) the Opener for kind. Backends call it
// from init.
func Register(kind string, fn Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[kind] = fn
}

// Open opens a Conn using the Opener registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Conn, error) {
	mu.RLock()
	fn, ok := openers[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
