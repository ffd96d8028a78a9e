// Package store persists operator settings (mode and threshold) across restarts.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

const (
	bucket      = "irrigation"
	settingsKey = "settings"
)

// Settings is the persisted subset of controller state.
type Settings struct {
	Mode      logic.Mode `json:"mode"`
	Threshold int        `json:"threshold"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Commands returns the commands that restore these settings on a fresh controller.
func (s Settings) Commands() []logic.Command {
	return []logic.Command{
		logic.SetThreshold(s.Threshold),
		logic.SetMode(s.Mode),
	}
}

// Store is a bbolt-backed settings store.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the stored settings. ok is false when nothing has been saved yet.
func (s *Store) Load() (settings Settings, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucket)).Get([]byte(settingsKey))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &settings)
	})
	if err != nil {
		return Settings{}, false, fmt.Errorf("load settings: %w", err)
	}
	return settings, ok, nil
}

// Save overwrites the stored settings.
func (s *Store) Save(settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(settingsKey), data)
	})
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
