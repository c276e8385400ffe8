package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"epilogue/internal/secret"
)

// PreferenceStore implements domain.PreferenceStore on the preferences table.
// Keys registered with WithSecrets are kept in a secret.SecretStore instead.
type PreferenceStore struct {
	db *DB

	mu         sync.Mutex
	secrets    secret.SecretStore
	secretKeys map[string]bool
}

func NewPreferenceStore(db *DB) *PreferenceStore {
	return &PreferenceStore{db: db, secretKeys: map[string]bool{}}
}

// WithSecrets routes the given keys to store.
func (s *PreferenceStore) WithSecrets(store secret.SecretStore, keys ...string) *PreferenceStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets = store
	for _, k := range keys {
		s.secretKeys[k] = true
	}
	return s
}

func (s *PreferenceStore) isSecret(key string) bool {
	return s.secrets != nil && s.secretKeys[key]
}

// Get decodes the value stored under key into dst. dst may be nil when the
// caller only wants to know whether the key exists.
func (s *PreferenceStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	if s.isSecret(key) {
		b, err := s.secrets.Get(key)
		if err != nil {
			return false, fmt.Errorf("get secret %s: %w", key, err)
		}
		raw = b
	} else {
		var text string
		err := s.db.conn.QueryRowContext(ctx, `SELECT value_json FROM preferences WHERE key = ?`, key).Scan(&text)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("get preference %s: %w", key, err)
		}
		raw = []byte(text)
	}

	if len(raw) == 0 {
		return false, nil
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			return false, fmt.Errorf("decode preference %s: %w", key, err)
		}
	}
	return true, nil
}

// Set stores value under key, replacing any previous value.
func (s *PreferenceStore) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode preference %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isSecret(key) {
		if err := s.secrets.Set(key, raw); err != nil {
			return fmt.Errorf("set secret %s: %w", key, err)
		}
		return nil
	}

	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO preferences (key, value_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`,
		key, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *PreferenceStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isSecret(key) {
		if err := s.secrets.Delete(key); err != nil {
			return fmt.Errorf("remove secret %s: %w", key, err)
		}
		return nil
	}

	if _, err := s.db.conn.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove preference %s: %w", key, err)
	}
	return nil
}

// Fingerprint summarizes the preferences table so another process's writes
// can be noticed by polling.
func (s *PreferenceStore) Fingerprint(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		count   int
		updated string
	)
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(updated_at), '') FROM preferences`,
	).Scan(&count, &updated)
	if err != nil {
		return "", fmt.Errorf("fingerprint preferences: %w", err)
	}
	return fmt.Sprintf("%d:%s", count, updated), nil
}
