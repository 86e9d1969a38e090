package session

import "github.com/lamim/taleforge/pkg/models"

// State is an immutable view of the controller for the presentation layer
type State struct {
	Phase              models.Phase
	Session            models.Session // Deep copy
	OptionsRevealed    bool
	QuitConfirmPending bool
	LastError          string
	LoadingMessage     string // Set only while generating
	SceneID            uint64 // Pass to RevealOptions when the scene has been revealed
	IsFinale           bool   // The current position is the last scene of the story
	HasEnded           bool   // The current scene offers no further choices
	Percent            float64
}

// Options returns the choices to display, or nil while they are hidden
func (s State) Options() []string {
	if !s.OptionsRevealed || s.Session.Current == nil {
		return nil
	}
	return s.Session.Current.Options
}

func (c *Controller) stateLocked() State {
	st := State{
		Phase:              c.phase,
		Session:            c.session.Clone(),
		OptionsRevealed:    c.optionsRevealed,
		QuitConfirmPending: c.quitPending,
		LastError:          c.lastError,
		LoadingMessage:     c.loadingMsg,
		SceneID:            c.sceneID,
	}
	if c.session.Genre.ID != "" {
		st.IsFinale = c.session.Progress.IsFinale(c.cfg.Limits)
		st.Percent = c.session.Progress.Percent(c.cfg.Limits)
	}
	st.HasEnded = c.session.Current != nil && c.session.Current.IsEnding()
	return st
}
