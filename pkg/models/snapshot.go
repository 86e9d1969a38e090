package models

import "time"

// Snapshot is the serialized form of a session written to durable storage.
// Field names match the web client save format.
type Snapshot struct {
	// Game state
	GameState   Phase          `json:"gameState"` // Only "playing" and "error" are ever written
	Genre       *Genre         `json:"genre"`
	StoryTitle  string         `json:"storyTitle"`
	History     []HistoryEntry `json:"history"`
	CurrentData *SceneData     `json:"currentData"`
	Chapter     int            `json:"chapter"`
	Scene       int            `json:"scene"`

	// Metadata
	SessionID string    `json:"sessionId,omitempty"`
	SavedAt   time.Time `json:"savedAt,omitempty"`
}

// NewSnapshot captures a session in the given phase
func NewSnapshot(phase Phase, s Session) *Snapshot {
	genre := s.Genre
	cp := s.Clone()
	return &Snapshot{
		GameState:   phase,
		Genre:       &genre,
		StoryTitle:  cp.Title,
		History:     cp.History,
		CurrentData: cp.Current,
		Chapter:     cp.Progress.Chapter,
		Scene:       cp.Progress.Scene,
		SessionID:   cp.ID,
		SavedAt:     time.Now().UTC(),
	}
}

// Resumable reports whether the snapshot describes a session that can be continued
func (s *Snapshot) Resumable() bool {
	return s.GameState == PhasePlaying && s.CurrentData != nil
}

// Progress returns the saved chapter/scene position
func (s *Snapshot) Progress() Progress {
	return Progress{Chapter: s.Chapter, Scene: s.Scene}
}

// Session rebuilds the live session from the snapshot
func (s *Snapshot) Session() Session {
	var genre Genre
	if s.Genre != nil {
		genre = *s.Genre
	}
	return Session{
		ID:       s.SessionID,
		Genre:    genre,
		Title:    s.StoryTitle,
		History:  append([]HistoryEntry{}, s.History...),
		Current:  s.CurrentData.Clone(),
		Progress: s.Progress(),
	}
}
