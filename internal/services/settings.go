package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/logger"

	"luckydraw/internal/models"
	"luckydraw/internal/storage"
)

// SettingsStore reads and writes the "settings" key.
type SettingsStore struct {
	kv      storage.Store
	current models.Settings
	saved   bool
}

// NewSettingsStore creates a store holding the default settings.
func NewSettingsStore(kv storage.Store) *SettingsStore {
	return &SettingsStore{kv: kv, current: models.DefaultSettings()}
}

// Load reads persisted settings, falling back to defaults when the key is
// missing, undecodable or invalid.
func (s *SettingsStore) Load(ctx context.Context) models.Settings {
	s.current = models.DefaultSettings()
	s.saved = false

	b, err := s.kv.Get(ctx, storage.KeySettings)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warningf("settings: load failed, using defaults: %v", err)
		}
		return s.current
	}
	loaded := models.DefaultSettings()
	if err := json.Unmarshal(b, &loaded); err != nil {
		logger.Warningf("settings: stored settings are corrupt, using defaults: %v", err)
		return s.current
	}
	if err := loaded.Validate(); err != nil {
		logger.Warningf("settings: stored settings rejected, using defaults: %v", err)
		return s.current
	}
	s.current = loaded
	s.saved = true
	return s.current
}

// Save validates settings and overwrites the persisted copy wholesale.
// A failed write is logged; the new settings still take effect in memory.
func (s *SettingsStore) Save(ctx context.Context, settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.current = settings
	s.saved = true
	b, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeySettings, b); err != nil {
		logger.Errorf("settings: persist: %v", err)
	}
	return nil
}

// Current returns the active settings.
func (s *SettingsStore) Current() models.Settings {
	return s.current
}

// Saved reports whether the active settings came from a save rather than defaults.
func (s *SettingsStore) Saved() bool {
	return s.saved
}
