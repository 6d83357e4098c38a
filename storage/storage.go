// Package storage provides the key-value backends the medication snapshot is
// persisted to. Values are opaque byte slices; the data package decides the
// keys and the encoding.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Snapshot keys
const (
	KeyMedications = "medications"
	KeyLastUpdated = "lastUpdated"
)

// Supported drivers
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrStorageUnavailable is returned while the circuit breaker is open
var ErrStorageUnavailable = errors.New("storage temporarily unavailable")

// KeyValue is a small persistent key-value store. SetItems writes every
// item or none of them when the backend supports transactions.
type KeyValue interface {
	GetItem(ctx context.Context, key string) ([]byte, bool, error)
	SetItems(ctx context.Context, items map[string][]byte) error
	Close() error
}

// Options selects and configures a backend
type Options struct {
	Driver      string
	Path        string // file and sqlite
	DatabaseURL string // postgres
}

// Open returns the backend described by opts, wrapped in a circuit breaker
func Open(ctx context.Context, opts Options) (KeyValue, error) {
	var (
		kv  KeyValue
		err error
	)

	switch strings.ToLower(opts.Driver) {
	case DriverMemory:
		kv = NewMemoryStore()
	case DriverFile:
		kv, err = NewFileStore(opts.Path)
	case DriverSQLite:
		kv, err = NewSQLiteStore(ctx, opts.Path)
	case DriverPostgres:
		kv, err = NewPostgresStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", opts.Driver, err)
	}

	return NewBreaker(kv, opts.Driver), nil
}
