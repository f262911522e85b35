package runstore

import (
	"fmt"
	"strings"
	"sync"
)

// Factory builds a Store from the DSN remainder after its scheme.
type Factory func(dsn string) (Store, error)

var factoryRegistry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{
	factories: map[string]Factory{},
}

// RegisterFactory makes a store backend available under a DSN scheme.
func RegisterFactory(scheme string, factory Factory) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" || factory == nil {
		return
	}
	factoryRegistry.mu.Lock()
	defer factoryRegistry.mu.Unlock()
	factoryRegistry.factories[scheme] = factory
}

func lookupFactory(scheme string) (Factory, bool) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	factoryRegistry.mu.RLock()
	defer factoryRegistry.mu.RUnlock()
	factory, ok := factoryRegistry.factories[scheme]
	return factory, ok
}

// FromDSN selects a backend by DSN scheme:
//
//	memory://            in-process, lost on exit
//	file://path.json     JSON file
//	sqlite://path.db     SQLite file
//	postgres://...       Postgres (full DSN passed through)
//
// A bare path with no scheme is treated as a file store.
func FromDSN(dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryStore(), nil
	}
	scheme, rest := splitScheme(dsn)
	if scheme == "" {
		return NewFileStore(dsn)
	}
	factory, ok := lookupFactory(scheme)
	if !ok {
		return nil, fmt.Errorf("unsupported run store scheme: %s", scheme)
	}
	return factory(rest)
}

func splitScheme(dsn string) (scheme, rest string) {
	idx := strings.Index(dsn, "://")
	if idx < 0 {
		return "", dsn
	}
	return strings.ToLower(dsn[:idx]), dsn[idx+3:]
}

func init() {
	RegisterFactory("memory", func(string) (Store, error) {
		return NewMemoryStore(), nil
	})
	RegisterFactory("file", func(rest string) (Store, error) {
		return NewFileStore(rest)
	})
	RegisterFactory("sqlite", func(rest string) (Store, error) {
		return NewSQLiteStore(rest)
	})
	postgresFactory := func(rest string) (Store, error) {
		// lib/pq wants the full URL including scheme.
		return NewPostgresStore("postgres://" + rest)
	}
	RegisterFactory("postgres", postgresFactory)
	RegisterFactory("postgresql", postgresFactory)
}
