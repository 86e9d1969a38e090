package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lamim/taleforge/internal/metrics"
	"github.com/lamim/taleforge/internal/storage"
	"github.com/lamim/taleforge/pkg/models"
)

// DefaultKey is the versioned storage key of the session snapshot.
// Bump the version suffix on incompatible schema changes.
const DefaultKey = "story_app_save_v1"

// ErrCorrupt is returned when the stored snapshot cannot be trusted
var ErrCorrupt = errors.New("saved session is corrupt")

// Manager saves and restores the single session snapshot
type Manager struct {
	store   storage.Store
	key     string
	limits  models.Limits
	logger  *slog.Logger
	metrics *metrics.Collector
	writeMu sync.Mutex // Serializes overwrites
}

// NewManager creates a snapshot manager on top of a store. collector may be nil.
func NewManager(store storage.Store, key string, limits models.Limits, logger *slog.Logger, collector *metrics.Collector) *Manager {
	if key == "" {
		key = DefaultKey
	}
	return &Manager{
		store:   store,
		key:     key,
		limits:  limits,
		logger:  logger.With("component", "checkpoint"),
		metrics: collector,
	}
}

// Key returns the storage key snapshots are written under
func (m *Manager) Key() string {
	return m.key
}

// Save overwrites the stored snapshot. Only playing and error snapshots are accepted.
func (m *Manager) Save(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if !snap.GameState.Persistent() {
		return fmt.Errorf("refusing to save snapshot in phase %q", snap.GameState)
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		m.metrics.RecordSnapshotWrite(false)
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	m.writeMu.Lock()
	err = m.store.Set(ctx, m.key, string(data))
	m.writeMu.Unlock()

	m.metrics.RecordSnapshotWrite(err == nil)
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	m.logger.Debug("Snapshot saved",
		"key", m.key,
		"phase", snap.GameState,
		"chapter", snap.Chapter,
		"scene", snap.Scene,
		"history", len(snap.History))
	return nil
}

// Load returns the stored snapshot if it describes a resumable session.
// Absent and non-resumable snapshots yield nil, nil. Structurally invalid
// ones yield nil and an error wrapping ErrCorrupt.
func (m *Manager) Load(ctx context.Context) (*models.Snapshot, error) {
	snap, err := m.Peek(ctx)
	if err != nil || snap == nil {
		return nil, err
	}

	if !snap.Resumable() {
		m.logger.Debug("Stored snapshot is not resumable", "phase", snap.GameState)
		return nil, nil
	}

	if err := ValidateSnapshot(snap, m.limits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	// Saved genre descriptors are replaced with the canonical ones
	genre, _ := models.LookupGenre(snap.Genre.ID)
	snap.Genre = &genre
	return snap, nil
}

// Peek decodes whatever snapshot is stored without checking that it can be resumed
func (m *Manager) Peek(ctx context.Context) (*models.Snapshot, error) {
	raw, err := m.store.Get(ctx, m.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &snap, nil
}

// Clear removes the stored snapshot
func (m *Manager) Clear(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.Delete(ctx, m.key); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	m.logger.Debug("Snapshot cleared", "key", m.key)
	return nil
}
