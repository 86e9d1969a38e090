// Package session implements the story state machine: genre selection,
// scene generation, play, error and reset.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/taleforge/internal/checkpoint"
	"github.com/lamim/taleforge/internal/metrics"
	"github.com/lamim/taleforge/pkg/models"
)

// Errors returned by controller operations
var (
	ErrInvalidPhase  = errors.New("operation not allowed in current phase")
	ErrUnknownOption = errors.New("option is not one of the current choices")
	ErrUnknownGenre  = errors.New("unknown genre")
)

// DefaultLoadingInterval is how often the wait message rotates
const DefaultLoadingInterval = 2 * time.Second

// Generator produces the scene at session.Progress
type Generator interface {
	Generate(ctx context.Context, session models.Session, choice string) (*models.SceneData, error)
}

// Persister stores the single session snapshot
type Persister interface {
	Save(ctx context.Context, snap *models.Snapshot) error
	Load(ctx context.Context) (*models.Snapshot, error)
	Clear(ctx context.Context) error
}

// Config holds the story rules the controller enforces
type Config struct {
	Limits          models.Limits
	LoadingInterval time.Duration
	EnforceFinale   bool // Drop options the backend returns for the final scene
}

// Option customizes a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Controller) {
		c.metrics = collector
	}
}

// WithObserver registers a callback invoked with the new state after every
// change. It is called outside the controller lock, possibly from several
// goroutines, and must not block.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// WithIDGenerator overrides how session ids are created
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.newID = fn
	}
}

// Controller owns the session and is the only path that mutates it.
// All methods are safe for concurrent use.
type Controller struct {
	generator Generator
	store     Persister
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Collector
	observer  func(State)
	newID     func() string

	mu              sync.Mutex
	bootstrapped    bool
	phase           models.Phase
	session         models.Session
	optionsRevealed bool
	quitPending     bool
	lastError       string
	loadingMsg      string
	sceneID         uint64             // Identifies the displayed scene for reveal completion
	genID           uint64             // Identifies the in-flight generation
	epoch           uint64             // Bumped on reset so pending saves are dropped
	cancelGen       context.CancelFunc // Cancels the in-flight generation
	stopLoading     chan struct{}      // Stops the wait-message rotation

	persistMu sync.Mutex // Orders snapshot writes against clears
	inflight  sync.WaitGroup
}

// New creates a controller in the loading_save phase
func New(generator Generator, store Persister, cfg Config, opts ...Option) *Controller {
	if cfg.LoadingInterval <= 0 {
		cfg.LoadingInterval = DefaultLoadingInterval
	}
	if cfg.Limits.MaxChapters == 0 || cfg.Limits.ScenesPerChapter == 0 {
		cfg.Limits = models.DefaultLimits()
	}

	c := &Controller{
		generator: generator,
		store:     store,
		cfg:       cfg,
		logger:    slog.Default(),
		newID:     uuid.NewString,
		phase:     models.PhaseLoadingSave,
		session:   models.Session{History: []models.HistoryEntry{}, Progress: models.StartProgress()},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "session")
	return c
}

// Bootstrap restores a resumable saved session or moves to welcome.
// Only the first call does any work; later calls return the current state.
func (c *Controller) Bootstrap(ctx context.Context) State {
	c.mu.Lock()
	if c.bootstrapped {
		st := c.stateLocked()
		c.mu.Unlock()
		return st
	}
	c.bootstrapped = true
	c.mu.Unlock()

	snap, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, checkpoint.ErrCorrupt) {
			c.logger.Warn("Discarding corrupt saved session", "error", err)
			c.persistMu.Lock()
			if clearErr := c.store.Clear(ctx); clearErr != nil {
				c.logger.Error("Failed to purge corrupt saved session", "error", clearErr)
			}
			c.persistMu.Unlock()
		} else {
			c.logger.Error("Failed to load saved session", "error", err)
		}
		snap = nil
	}

	c.mu.Lock()
	if snap == nil {
		c.setPhaseLocked(models.PhaseWelcome)
		st := c.stateLocked()
		c.mu.Unlock()
		c.notify(st)
		return st
	}

	c.session = snap.Session()
	if c.session.ID == "" {
		c.session.ID = c.newID()
	}
	c.optionsRevealed = true
	c.sceneID++
	c.setPhaseLocked(models.PhasePlaying)
	c.logger.Info("Resumed saved session",
		"session_id", c.session.ID,
		"genre", c.session.Genre.ID,
		"chapter", c.session.Progress.Chapter,
		"scene", c.session.Progress.Scene)
	return c.commitLocked(ctx)
}

// SelectGenre starts a new story in genre g and requests the opening scene
func (c *Controller) SelectGenre(ctx context.Context, g models.Genre) error {
	genre, ok := models.LookupGenre(g.ID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGenre, g.ID)
	}

	c.mu.Lock()
	if c.phase != models.PhaseWelcome {
		phase := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: select genre in %s", ErrInvalidPhase, phase)
	}

	c.session = models.NewSession(c.newID(), genre)
	c.lastError = ""
	c.quitPending = false
	c.optionsRevealed = false
	c.logger.Info("Starting new story", "session_id", c.session.ID, "genre", genre.ID)
	c.startGenerationLocked(ctx, "")
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
	return nil
}

// ChooseOption advances the story with one of the revealed options
func (c *Controller) ChooseOption(ctx context.Context, option string) error {
	c.mu.Lock()
	if err := c.canChooseLocked(option); err != nil {
		c.mu.Unlock()
		return err
	}

	c.session.Progress = c.session.Progress.Next(c.cfg.Limits)
	c.session.History = append(c.session.History, models.HistoryEntry{Role: models.RoleUser, Text: option})
	c.optionsRevealed = false
	c.quitPending = false
	c.startGenerationLocked(ctx, option)
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
	return nil
}

func (c *Controller) canChooseLocked(option string) error {
	if c.phase != models.PhasePlaying {
		return fmt.Errorf("%w: choose option in %s", ErrInvalidPhase, c.phase)
	}
	if !c.optionsRevealed {
		return fmt.Errorf("%w: options are not revealed yet", ErrInvalidPhase)
	}
	if c.session.Current == nil || len(c.session.Current.Options) == 0 {
		return fmt.Errorf("%w: the story has ended", ErrInvalidPhase)
	}
	for _, o := range c.session.Current.Options {
		if o == option {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownOption, option)
}

// startGenerationLocked enters generating and launches the single in-flight request
func (c *Controller) startGenerationLocked(ctx context.Context, choice string) {
	c.genID++
	id := c.genID
	genCtx, cancel := context.WithCancel(ctx)
	c.cancelGen = cancel

	c.setPhaseLocked(models.PhaseGenerating)
	c.startLoadingLocked()

	session := c.session.Clone()
	c.inflight.Add(1)
	go c.advance(genCtx, id, session, choice)
}

// advance runs one generation and applies its result unless it was superseded
func (c *Controller) advance(ctx context.Context, id uint64, session models.Session, choice string) {
	defer c.inflight.Done()

	start := time.Now()
	scene, err := c.generator.Generate(ctx, session, choice)

	c.mu.Lock()
	if id != c.genID || c.phase != models.PhaseGenerating {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale generation result", "generation", id)
		return
	}
	c.cancelGen()
	c.cancelGen = nil
	c.stopLoadingLocked()

	if err != nil {
		c.lastError = err.Error()
		c.setPhaseLocked(models.PhaseError)
		c.logger.Error("Scene generation failed",
			"session_id", c.session.ID,
			"chapter", c.session.Progress.Chapter,
			"scene", c.session.Progress.Scene,
			"error", err)
	} else {
		c.applySceneLocked(scene)
		c.logger.Info("Scene generated",
			"session_id", c.session.ID,
			"chapter", c.session.Progress.Chapter,
			"scene", c.session.Progress.Scene,
			"options", len(scene.Options),
			"duration", time.Since(start))
	}

	c.commitLocked(ctx)
}

func (c *Controller) applySceneLocked(scene *models.SceneData) {
	scene = scene.Clone()

	if len(c.session.History) == 0 && scene.Title != "" {
		c.session.Title = scene.Title
	}

	finale := c.session.Progress.IsFinale(c.cfg.Limits)
	switch {
	case finale && len(scene.Options) > 0 && c.cfg.EnforceFinale:
		c.logger.Warn("Backend returned options for the final scene, dropping them", "options", len(scene.Options))
		scene.Options = []string{}
	case finale && len(scene.Options) > 0:
		c.logger.Warn("Backend returned options for the final scene", "options", len(scene.Options))
	case !finale && len(scene.Options) == 0:
		c.logger.Warn("Backend ended the story before the final scene",
			"chapter", c.session.Progress.Chapter,
			"scene", c.session.Progress.Scene)
	}

	c.session.History = append(c.session.History, models.HistoryEntry{Role: models.RoleModel, Text: scene.Story})
	c.session.Current = scene
	c.sceneID++
	c.optionsRevealed = false
	c.setPhaseLocked(models.PhasePlaying)
	c.metrics.IncrementScenes()
}

// RequestQuit asks for quit confirmation. Allowed while a story is active.
func (c *Controller) RequestQuit() error {
	c.mu.Lock()
	switch c.phase {
	case models.PhasePlaying, models.PhaseGenerating, models.PhaseError:
	default:
		phase := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: quit in %s", ErrInvalidPhase, phase)
	}
	c.quitPending = true
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
	return nil
}

// CancelQuit dismisses a pending quit confirmation
func (c *Controller) CancelQuit() {
	c.mu.Lock()
	if !c.quitPending {
		c.mu.Unlock()
		return
	}
	c.quitPending = false
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
}

// ConfirmQuit abandons the story: any in-flight request is cancelled, the
// saved snapshot is purged and the controller returns to a fresh welcome state
func (c *Controller) ConfirmQuit(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == models.PhaseLoadingSave {
		c.mu.Unlock()
		return fmt.Errorf("%w: quit before bootstrap", ErrInvalidPhase)
	}
	c.resetLocked()
	st := c.stateLocked()
	c.mu.Unlock()

	c.persistMu.Lock()
	err := c.store.Clear(ctx)
	c.persistMu.Unlock()
	if err != nil {
		c.logger.Error("Failed to purge saved session", "error", err)
	}

	c.notify(st)
	return err
}

// Restart recovers from the error screen with a full reset
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	phase := c.phase
	c.mu.Unlock()
	if phase != models.PhaseError {
		return fmt.Errorf("%w: restart in %s", ErrInvalidPhase, phase)
	}
	return c.ConfirmQuit(ctx)
}

func (c *Controller) resetLocked() {
	c.abortGenerationLocked()
	c.epoch++
	c.session = models.Session{History: []models.HistoryEntry{}, Progress: models.StartProgress()}
	c.optionsRevealed = false
	c.quitPending = false
	c.lastError = ""
	c.sceneID++
	c.setPhaseLocked(models.PhaseWelcome)
}

func (c *Controller) abortGenerationLocked() {
	c.genID++
	if c.cancelGen != nil {
		c.cancelGen()
		c.cancelGen = nil
	}
	c.stopLoadingLocked()
}

// RevealOptions marks the options of scene sceneID as visible.
// Completions for any other scene are ignored and reported as false.
func (c *Controller) RevealOptions(sceneID uint64) bool {
	c.mu.Lock()
	if c.phase != models.PhasePlaying || sceneID != c.sceneID || c.optionsRevealed {
		c.mu.Unlock()
		return false
	}
	c.optionsRevealed = true
	st := c.stateLocked()
	c.mu.Unlock()

	c.notify(st)
	return true
}

// State returns a snapshot of the controller for rendering
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Wait blocks until no generation goroutine is running
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close cancels any in-flight generation and stops background tasks.
// The saved snapshot is left as is.
func (c *Controller) Close() {
	c.mu.Lock()
	c.abortGenerationLocked()
	c.mu.Unlock()
	c.inflight.Wait()
}

func (c *Controller) setPhaseLocked(phase models.Phase) {
	if c.phase == phase {
		return
	}
	c.logger.Debug("Phase transition", "from", c.phase, "to", phase)
	c.phase = phase
	c.metrics.RecordTransition(string(phase))
}

// commitLocked persists the state if the phase requires it, then releases
// the lock and notifies the observer
func (c *Controller) commitLocked(ctx context.Context) State {
	st := c.stateLocked()
	var snap *models.Snapshot
	if c.phase.Persistent() {
		snap = models.NewSnapshot(c.phase, c.session)
	}
	epoch := c.epoch
	c.mu.Unlock()

	if snap != nil {
		c.persist(ctx, epoch, snap)
	}
	c.notify(st)
	return st
}

// persist saves snap unless a reset happened since it was taken
func (c *Controller) persist(ctx context.Context, epoch uint64, snap *models.Snapshot) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	stale := epoch != c.epoch
	c.mu.Unlock()
	if stale {
		return
	}

	// A cancelled generation context must not prevent the save
	if err := c.store.Save(context.WithoutCancel(ctx), snap); err != nil {
		c.logger.Error("Failed to save session", "phase", snap.GameState, "error", err)
	}
}

func (c *Controller) notify(st State) {
	if c.observer != nil {
		c.observer(st)
	}
}
