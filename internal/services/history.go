package services

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/google/logger"

	"luckydraw/internal/models"
	"luckydraw/internal/storage"
)

// HistoryStore owns the ordered sequence of winner records and mirrors it
// to the "winners" key. Persistence failures are logged and swallowed; the
// in-memory sequence stays authoritative for the life of the process.
type HistoryStore struct {
	kv      storage.Store
	records []models.WinnerRecord
}

// NewHistoryStore creates an empty HistoryStore; call LoadAll to read state.
func NewHistoryStore(kv storage.Store) *HistoryStore {
	return &HistoryStore{kv: kv}
}

// LoadAll replaces the in-memory sequence with the persisted one.
// A missing or unreadable key yields an empty sequence.
func (h *HistoryStore) LoadAll(ctx context.Context) []models.WinnerRecord {
	h.records = nil
	b, err := h.kv.Get(ctx, storage.KeyWinners)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warningf("history: load failed, starting empty: %v", err)
		}
		return h.Records()
	}
	var records []models.WinnerRecord
	if err := json.Unmarshal(b, &records); err != nil {
		logger.Warningf("history: stored winners are corrupt, starting empty: %v", err)
		return h.Records()
	}
	h.records = records
	return h.Records()
}

// Append adds records to the end of the sequence and persists all of it.
func (h *HistoryStore) Append(ctx context.Context, records ...models.WinnerRecord) {
	if len(records) == 0 {
		return
	}
	h.records = append(h.records, records...)
	b, err := json.Marshal(h.records)
	if err != nil {
		logger.Errorf("history: encode winners: %v", err)
		return
	}
	if err := h.kv.Set(ctx, storage.KeyWinners, b); err != nil {
		logger.Errorf("history: persist winners: %v", err)
	}
}

// Clear empties the sequence and deletes the persisted key.
func (h *HistoryStore) Clear(ctx context.Context) {
	h.records = nil
	if err := h.kv.Delete(ctx, storage.KeyWinners); err != nil {
		logger.Errorf("history: delete winners: %v", err)
	}
}

// Records returns a copy of the sequence in insertion order.
func (h *HistoryStore) Records() []models.WinnerRecord {
	return slices.Clone(h.records)
}

// Numbers returns the drawn numbers in insertion order.
func (h *HistoryStore) Numbers() []int {
	numbers := make([]int, len(h.records))
	for i, r := range h.records {
		numbers[i] = r.Number
	}
	return numbers
}

// Len returns the number of records.
func (h *HistoryStore) Len() int {
	return len(h.records)
}
