// Package terminal is the line-oriented front end. It renders controller
// state and turns typed lines into controller operations.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/muesli/reflow/wordwrap"
	"github.com/schollz/progressbar/v3"

	"github.com/lamim/taleforge/internal/metrics"
	"github.com/lamim/taleforge/internal/reveal"
	"github.com/lamim/taleforge/internal/session"
	"github.com/lamim/taleforge/pkg/models"
)

const (
	// DefaultWidth is the wrap column for story text
	DefaultWidth = 80
	spinnerTick  = 100 * time.Millisecond
)

// Controller is the part of the session controller the UI drives
type Controller interface {
	Bootstrap(ctx context.Context) session.State
	SelectGenre(ctx context.Context, g models.Genre) error
	ChooseOption(ctx context.Context, option string) error
	RequestQuit() error
	CancelQuit()
	ConfirmQuit(ctx context.Context) error
	Restart(ctx context.Context) error
	RevealOptions(sceneID uint64) bool
	State() session.State
}

// Config controls layout and reveal pacing
type Config struct {
	Width          int
	RevealInterval time.Duration
	RevealFrame    time.Duration
}

// Option customizes a UI
type Option func(*UI)

// WithLogger sets the UI logger
func WithLogger(logger *slog.Logger) Option {
	return func(u *UI) {
		u.logger = logger
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(u *UI) {
		u.metrics = collector
	}
}

// UI renders a story session to a writer and reads commands line by line
type UI struct {
	out     *lockedWriter
	in      io.Reader
	cfg     Config
	styles  *styles
	logger  *slog.Logger
	metrics *metrics.Collector

	lines      chan string
	done       chan struct{}
	changed    chan struct{} // Signalled by Notify
	revealDone chan uint64   // Completed reveal ids
	engine     *reveal.Engine
	printed    int // Bytes of the current reveal already written, guarded by out.mu
	shownScene uint64
}

// New creates a UI reading commands from in and writing to out.
// Register Notify as the controller observer before calling Run.
func New(in io.Reader, out io.Writer, cfg Config, opts ...Option) *UI {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.RevealInterval <= 0 {
		cfg.RevealInterval = reveal.DefaultInterval
	}

	w := &lockedWriter{w: out}
	u := &UI{
		out:        w,
		in:         in,
		cfg:        cfg,
		styles:     newStyles(out),
		logger:     slog.Default(),
		changed:    make(chan struct{}, 1),
		revealDone: make(chan uint64, 1),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.With("component", "terminal")

	u.engine = reveal.New(reveal.Options{
		Interval:   cfg.RevealInterval,
		Frame:      cfg.RevealFrame,
		OnUpdate:   u.onRevealUpdate,
		OnComplete: u.onRevealComplete,
	})
	return u
}

// Notify wakes the UI after a controller state change. It never blocks.
func (u *UI) Notify(session.State) {
	select {
	case u.changed <- struct{}{}:
	default:
	}
}

// Run drives the session until the player exits, input ends or ctx is cancelled
func (u *UI) Run(ctx context.Context, ctl Controller) error {
	defer u.engine.Close()

	u.lines = make(chan string)
	u.done = make(chan struct{})
	defer close(u.done)
	go u.readLines()

	if st := ctl.Bootstrap(ctx); st.Phase == models.PhasePlaying {
		u.styles.apply(st.Session.Genre.Theme)
		u.println(u.styles.meta.Render("Resuming your saved story."))
	}

	for {
		st := ctl.State()

		var ok bool
		switch st.Phase {
		case models.PhaseWelcome:
			ok = u.welcome(ctx, ctl)
		case models.PhaseGenerating:
			ok = u.awaitGeneration(ctx, ctl)
		case models.PhasePlaying:
			ok = u.play(ctx, ctl, st)
		case models.PhaseError:
			ok = u.failure(ctx, ctl, st)
		default:
			ctl.Bootstrap(ctx)
			ok = true
		}

		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			u.println(u.styles.meta.Render("Goodbye."))
			return nil
		}
	}
}

func (u *UI) readLines() {
	defer close(u.lines)
	scanner := bufio.NewScanner(u.in)
	for scanner.Scan() {
		select {
		case u.lines <- strings.TrimSpace(scanner.Text()):
		case <-u.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		u.logger.Warn("Input closed with error", "error", err)
	}
}

// readLine waits for the next input line. ok is false on end of input or cancellation.
func (u *UI) readLine(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-u.lines:
		return line, ok
	}
}

func (u *UI) welcome(ctx context.Context, ctl Controller) bool {
	u.styles.apply("")
	u.println("")
	u.println(u.styles.banner.Render("TaleForge"))
	u.println(u.styles.meta.Render("Choose a genre to begin your story."))

	genres := models.Genres()
	for i, g := range genres {
		u.println(fmt.Sprintf("  %d) %s", i+1, g.Label))
	}
	u.println("  q) Quit")
	u.prompt("> ")

	line, ok := u.readLine(ctx)
	if !ok || isQuit(line) {
		return false
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(genres) {
		u.println(u.styles.errorMsg.Render(fmt.Sprintf("Pick a number between 1 and %d.", len(genres))))
		return true
	}

	genre := genres[n-1]
	u.styles.apply(genre.Theme)
	if err := ctl.SelectGenre(ctx, genre); err != nil {
		u.println(u.styles.errorMsg.Render(err.Error()))
	}
	return true
}

func (u *UI) awaitGeneration(ctx context.Context, ctl Controller) bool {
	st := ctl.State()
	if st.Phase != models.PhaseGenerating {
		return true
	}

	msg := st.LoadingMessage
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(u.out),
		progressbar.OptionSetDescription(msg),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			_ = bar.Add(1)
		case <-u.changed:
			st = ctl.State()
			if st.Phase != models.PhaseGenerating {
				return true
			}
			if st.LoadingMessage != "" && st.LoadingMessage != msg {
				msg = st.LoadingMessage
				bar.Describe(msg)
			}
		case line, ok := <-u.lines:
			if !ok {
				return false
			}
			if isQuit(line) {
				_ = bar.Clear()
				u.println("")
				return u.confirmQuit(ctx, ctl)
			}
		}
	}
}

func (u *UI) play(ctx context.Context, ctl Controller, st session.State) bool {
	if st.Session.Current == nil {
		return false
	}

	if st.SceneID != u.shownScene {
		u.shownScene = st.SceneID
		u.styles.apply(st.Session.Genre.Theme)
		u.renderHeader(st)
		if !u.reveal(ctx, ctl, st) {
			return false
		}
		st = ctl.State()
		if st.Phase != models.PhasePlaying {
			return true
		}
	}

	if st.HasEnded {
		return u.ending(ctx, ctl)
	}

	options := st.Options()
	if options == nil {
		ctl.RevealOptions(st.SceneID)
		return true
	}

	u.println("")
	for i, opt := range options {
		u.println(u.styles.option.Render(fmt.Sprintf("  %d) %s", i+1, opt)))
	}
	u.println(u.styles.meta.Render("  q) Quit story"))
	u.prompt("> ")

	line, ok := u.readLine(ctx)
	if !ok {
		return false
	}
	if isQuit(line) {
		return u.confirmQuit(ctx, ctl)
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(options) {
		u.println(u.styles.errorMsg.Render(fmt.Sprintf("Pick a number between 1 and %d.", len(options))))
		return true
	}
	if err := ctl.ChooseOption(ctx, options[n-1]); err != nil {
		u.println(u.styles.errorMsg.Render(err.Error()))
	}
	return true
}

func (u *UI) renderHeader(st session.State) {
	p := st.Session.Progress
	u.println("")
	u.println(u.styles.title.Render(st.Session.DisplayTitle()))
	u.println(u.styles.meta.Render(fmt.Sprintf("Chapter %d · Scene %d · %.0f%%", p.Chapter, p.Scene, st.Percent)))
	u.println("")
}

// reveal types out the current scene. Any input line skips to the full text.
func (u *UI) reveal(ctx context.Context, ctl Controller, st session.State) bool {
	story := wordwrap.String(st.Session.Current.Story, u.cfg.Width)

	select {
	case <-u.revealDone:
	default:
	}
	u.out.mu.Lock()
	u.printed = 0
	u.out.mu.Unlock()

	id := u.engine.Start(story, st.OptionsRevealed)
	for {
		select {
		case <-ctx.Done():
			u.engine.Close()
			return false
		case done := <-u.revealDone:
			if done != id {
				continue
			}
			u.println("")
			ctl.RevealOptions(st.SceneID)
			return true
		case _, ok := <-u.lines:
			if !ok {
				u.engine.Close()
				return false
			}
			if u.engine.Skip() {
				u.metrics.IncrementRevealSkips()
				u.logger.Debug("Reveal skipped", "scene", st.SceneID)
			}
		case <-u.changed:
		}
	}
}

func (u *UI) onRevealUpdate(id uint64, text string) {
	if id != u.engine.ID() {
		return
	}
	u.out.mu.Lock()
	defer u.out.mu.Unlock()
	if len(text) <= u.printed {
		return
	}
	_, _ = io.WriteString(u.out.w, text[u.printed:])
	u.printed = len(text)
}

func (u *UI) onRevealComplete(id uint64) {
	select {
	case u.revealDone <- id:
	default:
	}
}

func (u *UI) ending(ctx context.Context, ctl Controller) bool {
	u.println("")
	u.println(u.styles.ending.Render("The End"))
	u.prompt("Play again? (y/n) ")

	line, ok := u.readLine(ctx)
	if !ok || !isYes(line) {
		return false
	}
	if err := ctl.ConfirmQuit(ctx); err != nil {
		u.logger.Warn("Failed to reset after the ending", "error", err)
	}
	return true
}

func (u *UI) failure(ctx context.Context, ctl Controller, st session.State) bool {
	u.println("")
	u.println(u.styles.errorMsg.Render("Something went wrong: " + st.LastError))
	u.prompt("Press Enter to start over, or q to exit. ")

	line, ok := u.readLine(ctx)
	if !ok || isQuit(line) {
		return false
	}
	if err := ctl.Restart(ctx); err != nil && !errors.Is(err, session.ErrInvalidPhase) {
		u.logger.Warn("Restart failed", "error", err)
	}
	return true
}

// confirmQuit asks before abandoning the story. The saved story is deleted on yes.
func (u *UI) confirmQuit(ctx context.Context, ctl Controller) bool {
	if err := ctl.RequestQuit(); err != nil {
		u.println(u.styles.errorMsg.Render(err.Error()))
		return true
	}
	u.prompt("Abandon this story? Your saved progress will be lost. (y/n) ")

	line, ok := u.readLine(ctx)
	if !ok {
		ctl.CancelQuit()
		return false
	}
	if !isYes(line) {
		ctl.CancelQuit()
		return true
	}
	if err := ctl.ConfirmQuit(ctx); err != nil {
		u.logger.Warn("Failed to clear saved story", "error", err)
	}
	return true
}

func (u *UI) println(s string) {
	_, _ = io.WriteString(u.out, s+"\n")
}

func (u *UI) prompt(s string) {
	_, _ = io.WriteString(u.out, u.styles.prompt.Render(s))
}

func isQuit(line string) bool {
	return strings.EqualFold(line, "q") || strings.EqualFold(line, "quit")
}

func isYes(line string) bool {
	return strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
}

// lockedWriter serializes writes from the reveal goroutine and the main loop
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
