package models

// Role identifies who authored a history entry
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// HistoryEntry is one turn of the story transcript
type HistoryEntry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SceneData is a parsed backend response
type SceneData struct {
	Title   string   `json:"title,omitempty"` // Only returned for the opening scene
	Story   string   `json:"story"`
	Options []string `json:"options"`
}

// IsEnding reports whether the scene offers no further choices
func (s *SceneData) IsEnding() bool {
	return len(s.Options) == 0
}

// Clone returns a deep copy of the scene
func (s *SceneData) Clone() *SceneData {
	if s == nil {
		return nil
	}
	return &SceneData{
		Title:   s.Title,
		Story:   s.Story,
		Options: append([]string{}, s.Options...),
	}
}

// Session is the aggregate state of one playthrough
type Session struct {
	ID       string         `json:"id"`
	Genre    Genre          `json:"genre"`
	Title    string         `json:"title"`
	History  []HistoryEntry `json:"history"`
	Current  *SceneData     `json:"current"`
	Progress Progress       `json:"progress"`
}

// NewSession creates an empty session for a genre
func NewSession(id string, genre Genre) Session {
	return Session{
		ID:       id,
		Genre:    genre,
		History:  []HistoryEntry{},
		Progress: StartProgress(),
	}
}

// Clone returns a deep copy of the session
func (s Session) Clone() Session {
	cp := s
	cp.History = append([]HistoryEntry{}, s.History...)
	cp.Current = s.Current.Clone()
	return cp
}

// DisplayTitle returns the story title, falling back to the genre label
func (s Session) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	if s.Genre.Label != "" {
		return s.Genre.Label
	}
	return "Unknown Story"
}

// Phase is the state of the session state machine
type Phase string

const (
	PhaseLoadingSave Phase = "loading_save"
	PhaseWelcome     Phase = "welcome"
	PhaseGenerating  Phase = "generating"
	PhasePlaying     Phase = "playing"
	PhaseError       Phase = "error"
)

// Persistent reports whether entering the phase triggers a snapshot write
func (p Phase) Persistent() bool {
	return p == PhasePlaying || p == PhaseError
}
