// Package settings persists user preferences as JSON values keyed by name.
package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"vsixgrab/internal/utils"
)

const KeyAutoInject = "autoInject"

// Backend is the key/value table the store reads and writes.
type Backend interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

type Store struct {
	backend Backend
	logger  *utils.Logger
}

func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		logger:  utils.NewNamedLogger("settings"),
	}
}

// Get returns a value for every key in defaults: the stored one when present,
// otherwise the default.
func (s *Store) Get(ctx context.Context, defaults map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(defaults))
	for key, fallback := range defaults {
		raw, ok, err := s.backend.GetSetting(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read setting %q: %w", key, err)
		}
		if !ok {
			result[key] = fallback
			continue
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			s.logger.LogWarning("ignoring undecodable setting %q: %v", key, err)
			result[key] = fallback
			continue
		}
		result[key] = value
	}
	return result, nil
}

// Set stores every key of partial and leaves other keys untouched.
func (s *Store) Set(ctx context.Context, partial map[string]any) error {
	for key, value := range partial {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode setting %q: %w", key, err)
		}
		if err := s.backend.SetSetting(ctx, key, string(encoded)); err != nil {
			return fmt.Errorf("failed to store setting %q: %w", key, err)
		}
	}
	return nil
}

// AutoInject reports whether controls should be injected without being asked.
// It defaults to true and falls back to true when storage is unreadable.
func (s *Store) AutoInject(ctx context.Context) bool {
	values, err := s.Get(ctx, map[string]any{KeyAutoInject: true})
	if err != nil {
		s.logger.LogWarning("settings unavailable, assuming %s: %v", KeyAutoInject, err)
		return true
	}
	enabled, ok := values[KeyAutoInject].(bool)
	if !ok {
		return true
	}
	return enabled
}
