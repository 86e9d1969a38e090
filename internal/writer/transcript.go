package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lamim/taleforge/pkg/models"
)

// TranscriptRecord is one line of an exported story transcript
type TranscriptRecord struct {
	SessionID string      `json:"session_id,omitempty"`
	Genre     string      `json:"genre"`
	Index     int         `json:"index"`
	Role      models.Role `json:"role"`
	Chapter   int         `json:"chapter"`
	Scene     int         `json:"scene"`
	Text      string      `json:"text"`
}

// TranscriptRecords flattens a session history into records.
// Each model entry is one scene; a user entry belongs to the scene it led to.
func TranscriptRecords(s models.Session, limits models.Limits) []TranscriptRecord {
	records := make([]TranscriptRecord, 0, len(s.History))
	pos := models.StartProgress()
	scenes := 0

	for i, entry := range s.History {
		if entry.Role == models.RoleUser && scenes > 0 {
			pos = pos.Next(limits)
		}
		records = append(records, TranscriptRecord{
			SessionID: s.ID,
			Genre:     s.Genre.ID,
			Index:     i,
			Role:      entry.Role,
			Chapter:   pos.Chapter,
			Scene:     pos.Scene,
			Text:      entry.Text,
		})
		if entry.Role == models.RoleModel {
			scenes++
		}
	}
	return records
}

// TranscriptWriter handles thread-safe writing of transcript lines
type TranscriptWriter struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewTranscriptWriter creates (or truncates) the transcript file at path
func NewTranscriptWriter(path string, logger *slog.Logger) (*TranscriptWriter, error) {
	if err := ValidateExportPath(path); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	logger.Debug("Created transcript file", "path", path)
	return &TranscriptWriter{file: file, path: path, logger: logger}, nil
}

// WriteRecord writes a single record as one JSON line
func (tw *TranscriptWriter) WriteRecord(record TranscriptRecord) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := tw.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	tw.count++
	return nil
}

// Count returns the number of records written
func (tw *TranscriptWriter) Count() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.count
}

// Close syncs and closes the transcript file
func (tw *TranscriptWriter) Close() error {
	if err := tw.file.Sync(); err != nil {
		tw.logger.Warn("Failed to sync transcript file", "error", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close transcript file: %w", err)
	}
	tw.logger.Info("Closed transcript file", "path", tw.path, "records", tw.count)
	return nil
}

// ExportTranscript writes the history of s to path as JSON lines and returns the record count
func ExportTranscript(path string, s models.Session, limits models.Limits, logger *slog.Logger) (int, error) {
	tw, err := NewTranscriptWriter(path, logger)
	if err != nil {
		return 0, err
	}

	for _, record := range TranscriptRecords(s, limits) {
		if err := tw.WriteRecord(record); err != nil {
			_ = tw.Close()
			return tw.Count(), err
		}
	}
	return tw.Count(), tw.Close()
}
