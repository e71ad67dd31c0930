package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cuemby/nsx-orchestrator/pkg/security"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketProviders = []byte("providers")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db      *bolt.DB
	secrets *security.SecretsManager
}

// NewBoltStore creates a new BoltDB-backed store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "nsxctl.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketProviders); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketProviders, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// SetSecretsManager seals provider passwords on write and opens them on
// read. Passwords written without a secrets manager stay readable.
func (s *BoltStore) SetSecretsManager(sm *security.SecretsManager) {
	s.secrets = sm
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func zoneKey(zoneID int64) []byte {
	return []byte(strconv.FormatInt(zoneID, 10))
}

// Provider operations
func (s *BoltStore) CreateProvider(provider *types.Provider) error {
	if provider.CreatedAt.IsZero() {
		provider.CreatedAt = time.Now()
	}
	return s.putProvider(provider)
}

func (s *BoltStore) putProvider(provider *types.Provider) error {
	stored := *provider
	if s.secrets != nil {
		sealed, err := s.secrets.SealString(provider.Password)
		if err != nil {
			return fmt.Errorf("failed to seal password of zone %d: %w", provider.ZoneID, err)
		}
		stored.Password = sealed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		return b.Put(zoneKey(provider.ZoneID), data)
	})
}

func (s *BoltStore) GetProvider(zoneID int64) (*types.Provider, error) {
	var provider types.Provider
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		data := b.Get(zoneKey(zoneID))
		if data == nil {
			return fmt.Errorf("provider for zone %d: %w", zoneID, ErrNotFound)
		}
		return s.decodeProvider(data, &provider)
	})
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (s *BoltStore) GetProviderByName(name string) (*types.Provider, error) {
	providers, err := s.ListProviders()
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("provider %s: %w", name, ErrNotFound)
}

func (s *BoltStore) ListProviders() ([]*types.Provider, error) {
	var providers []*types.Provider
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		return b.ForEach(func(k, v []byte) error {
			var provider types.Provider
			if err := s.decodeProvider(v, &provider); err != nil {
				return err
			}
			providers = append(providers, &provider)
			return nil
		})
	})
	return providers, err
}

func (s *BoltStore) decodeProvider(data []byte, provider *types.Provider) error {
	if err := json.Unmarshal(data, provider); err != nil {
		return err
	}
	if !security.IsSealed(provider.Password) {
		return nil
	}
	if s.secrets == nil {
		return fmt.Errorf("provider for zone %d: %w", provider.ZoneID, ErrSealed)
	}
	password, err := s.secrets.OpenString(provider.Password)
	if err != nil {
		return fmt.Errorf("failed to open password of zone %d: %w", provider.ZoneID, err)
	}
	provider.Password = password
	return nil
}

func (s *BoltStore) UpdateProvider(provider *types.Provider) error {
	if _, err := s.GetProvider(provider.ZoneID); err != nil {
		return err
	}
	return s.putProvider(provider)
}

func (s *BoltStore) DeleteProvider(zoneID int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProviders)
		if b.Get(zoneKey(zoneID)) == nil {
			return fmt.Errorf("provider for zone %d: %w", zoneID, ErrNotFound)
		}
		return b.Delete(zoneKey(zoneID))
	})
}
