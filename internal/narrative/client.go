package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lamim/taleforge/internal/api"
	"github.com/lamim/taleforge/internal/util"
	"github.com/lamim/taleforge/pkg/models"
)

// TextGenerator sends one prompt to the backend and returns the raw generated text
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Templates are the prompt templates rendered for each request
type Templates struct {
	Opening      string
	Continuation string
}

// Options configures prompt construction
type Options struct {
	Limits         models.Limits
	CharTarget     int
	ContextEntries int
	Templates      Templates
}

// Client turns a session and a choice into the next scene
type Client struct {
	backend TextGenerator
	opts    Options
	logger  *slog.Logger
}

// NewClient creates a narrative client on top of a text generator
func NewClient(backend TextGenerator, opts Options, logger *slog.Logger) *Client {
	return &Client{
		backend: backend,
		opts:    opts,
		logger:  logger.With("component", "narrative"),
	}
}

// Generate requests the scene at session.Progress. choice is the option the
// player just picked and is ignored for the opening scene.
// All failures are *api.GenerationError values.
func (c *Client) Generate(ctx context.Context, session models.Session, choice string) (*models.SceneData, error) {
	prompt, err := c.BuildPrompt(session, choice)
	if err != nil {
		return nil, &api.GenerationError{Kind: api.KindTransport, Detail: fmt.Sprintf("failed to build prompt: %v", err), Err: err}
	}

	c.logger.Debug("Requesting scene",
		"session_id", session.ID,
		"genre", session.Genre.ID,
		"chapter", session.Progress.Chapter,
		"scene", session.Progress.Scene,
		"prompt_chars", len(prompt))

	raw, err := c.backend.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	scene, err := ParseScene(raw)
	if err != nil {
		c.logger.Warn("Backend returned unparsable scene",
			"session_id", session.ID,
			"preview", util.TruncateString(raw, 200))
		return nil, err
	}
	return scene, nil
}

// BuildPrompt renders the opening prompt for an empty history and the
// continuation prompt otherwise
func (c *Client) BuildPrompt(session models.Session, choice string) (string, error) {
	data := map[string]interface{}{
		"Genre":      session.Genre.Label,
		"CharTarget": c.opts.CharTarget,
		"Chapter":    session.Progress.Chapter,
		"Scene":      session.Progress.Scene,
	}

	if len(session.History) == 0 {
		return util.RenderTemplate(c.opts.Templates.Opening, data)
	}

	data["Context"] = contextWindow(session.History, c.opts.ContextEntries)
	data["Choice"] = choice
	data["IsFinale"] = session.Progress.IsFinale(c.opts.Limits)
	return util.RenderTemplate(c.opts.Templates.Continuation, data)
}

// contextWindow joins the text of the last n history entries
func contextWindow(history []models.HistoryEntry, n int) string {
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	texts := make([]string, 0, len(history))
	for _, h := range history {
		texts = append(texts, h.Text)
	}
	return strings.Join(texts, " ")
}

// ParseScene strips an optional code fence and decodes the scene payload
func ParseScene(raw string) (*models.SceneData, error) {
	cleaned := strings.TrimSpace(util.StripCodeFence(raw))

	var scene models.SceneData
	if err := json.Unmarshal([]byte(cleaned), &scene); err != nil {
		return nil, &api.GenerationError{Kind: api.KindMalformed, Detail: "Received malformed data.", Err: err}
	}
	if scene.Story == "" {
		return nil, &api.GenerationError{Kind: api.KindMalformed, Detail: "Received malformed data: scene has no story text"}
	}
	if scene.Options == nil {
		scene.Options = []string{}
	}
	return &scene, nil
}
