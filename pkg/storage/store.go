package storage

import (
	"errors"

	"github.com/cuemby/nsx-orchestrator/pkg/types"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrSealed is returned when a record holds an encrypted password and
	// the store has no secrets manager to open it
	ErrSealed = errors.New("password is encrypted, secret key required")
)

// Store persists controller registrations. Controller objects themselves are
// never stored: every read of them is a live call.
type Store interface {
	// Providers, keyed by zone
	CreateProvider(provider *types.Provider) error
	GetProvider(zoneID int64) (*types.Provider, error)
	GetProviderByName(name string) (*types.Provider, error)
	ListProviders() ([]*types.Provider, error)
	UpdateProvider(provider *types.Provider) error
	DeleteProvider(zoneID int64) error

	// Utility
	Close() error
}
