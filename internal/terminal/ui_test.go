package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lamim/taleforge/internal/checkpoint"
	"github.com/lamim/taleforge/internal/session"
	"github.com/lamim/taleforge/internal/storage"
	"github.com/lamim/taleforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// syncBuffer is a goroutine-safe output sink
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor blocks until the output contains s n times
func (b *syncBuffer) waitFor(t *testing.T, s string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Count(b.String(), s) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %q x%d in output:\n%s", s, n, b.String())
}

type scriptedGenerator struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, s models.Session) (*models.SceneData, error)
}

func (g *scriptedGenerator) Generate(_ context.Context, s models.Session, _ string) (*models.SceneData, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()
	return g.fn(call, s)
}

func (g *scriptedGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type harness struct {
	t     *testing.T
	out   *syncBuffer
	input *io.PipeWriter
	ctl   *session.Controller
	store storage.Store
	mgr   *checkpoint.Manager
	done  chan error
}

func startHarness(t *testing.T, gen session.Generator, limits models.Limits, interval time.Duration, seed func(*checkpoint.Manager)) *harness {
	t.Helper()

	store := storage.NewMemoryStore()
	mgr := checkpoint.NewManager(store, "", limits, testLogger(), nil)
	if seed != nil {
		seed(mgr)
	}

	out := &syncBuffer{}
	inR, inW := io.Pipe()

	ui := New(inR, out, Config{Width: 40, RevealInterval: interval, RevealFrame: time.Millisecond}, WithLogger(testLogger()))
	ctl := session.New(gen, mgr, session.Config{Limits: limits, EnforceFinale: true, LoadingInterval: 10 * time.Millisecond},
		session.WithLogger(testLogger()),
		session.WithObserver(ui.Notify))

	h := &harness{t: t, out: out, input: inW, ctl: ctl, store: store, mgr: mgr, done: make(chan error, 1)}
	go func() { h.done <- ui.Run(context.Background(), ctl) }()

	t.Cleanup(func() {
		_ = inW.Close()
		ctl.Close()
	})
	return h
}

func (h *harness) send(line string) {
	h.t.Helper()
	if _, err := io.WriteString(h.input, line+"\n"); err != nil {
		h.t.Fatalf("Failed to send %q: %v", line, err)
	}
}

func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		h.t.Fatalf("UI did not exit, output:\n%s", h.out.String())
		return nil
	}
}

func twoChoiceScenes(_ int, s models.Session) (*models.SceneData, error) {
	return &models.SceneData{
		Title:   "The Quiet House",
		Story:   fmt.Sprintf("Scene at chapter %d scene %d", s.Progress.Chapter, s.Progress.Scene),
		Options: []string{"Open the door", "Walk away"},
	}, nil
}

func TestRun_PlaysToTheEnd(t *testing.T) {
	gen := &scriptedGenerator{fn: twoChoiceScenes}
	h := startHarness(t, gen, models.Limits{MaxChapters: 1, ScenesPerChapter: 2}, time.Nanosecond, nil)

	h.out.waitFor(t, "q) Quit", 1)
	h.send("3")

	h.out.waitFor(t, "1) Open the door", 1)
	if !strings.Contains(h.out.String(), "The Quiet House") {
		t.Errorf("Expected story title in output")
	}
	if !strings.Contains(h.out.String(), "Scene at chapter 1 scene 1") {
		t.Errorf("Expected opening scene text in output")
	}
	h.send("1")

	h.out.waitFor(t, "The End", 1)
	if !strings.Contains(h.out.String(), "Scene at chapter 1 scene 2") {
		t.Errorf("Expected final scene text in output")
	}
	h.send("n")

	if err := h.wait(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if gen.count() != 2 {
		t.Errorf("Expected 2 generations, got %d", gen.count())
	}
	if got := h.ctl.State(); got.Session.Genre.ID != "horror" {
		t.Errorf("Expected horror genre, got %q", got.Session.Genre.ID)
	}
}

func TestRun_PlayAgainReturnsToWelcome(t *testing.T) {
	gen := &scriptedGenerator{fn: twoChoiceScenes}
	h := startHarness(t, gen, models.Limits{MaxChapters: 1, ScenesPerChapter: 1}, time.Nanosecond, nil)

	h.out.waitFor(t, "q) Quit", 1)
	h.send("1")
	h.out.waitFor(t, "The End", 1)
	h.send("y")

	h.out.waitFor(t, "Choose a genre", 2)
	if _, err := h.store.Get(context.Background(), checkpoint.DefaultKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Play again should clear the save, got %v", err)
	}
	h.send("q")
	if err := h.wait(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestRun_ErrorScreenRestarts(t *testing.T) {
	gen := &scriptedGenerator{fn: func(int, models.Session) (*models.SceneData, error) {
		return nil, errors.New("API error 503: unavailable")
	}}
	h := startHarness(t, gen, models.DefaultLimits(), time.Nanosecond, nil)

	h.out.waitFor(t, "q) Quit", 1)
	h.send("2")
	h.out.waitFor(t, "Something went wrong: API error 503", 1)

	h.send("")
	h.out.waitFor(t, "Choose a genre", 2)
	if st := h.ctl.State(); st.Phase != models.PhaseWelcome || st.LastError != "" {
		t.Errorf("Expected clean welcome, got %s %q", st.Phase, st.LastError)
	}

	h.send("q")
	if err := h.wait(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestRun_QuitConfirmation(t *testing.T) {
	gen := &scriptedGenerator{fn: twoChoiceScenes}
	h := startHarness(t, gen, models.DefaultLimits(), time.Nanosecond, nil)

	h.out.waitFor(t, "q) Quit", 1)
	h.send("1")
	h.out.waitFor(t, "2) Walk away", 1)

	h.send("q")
	h.out.waitFor(t, "Abandon this story?", 1)
	h.send("n")
	h.out.waitFor(t, "2) Walk away", 2)
	if st := h.ctl.State(); st.Phase != models.PhasePlaying || st.QuitConfirmPending {
		t.Errorf("Expected to keep playing, got %s pending=%v", st.Phase, st.QuitConfirmPending)
	}

	h.send("q")
	h.out.waitFor(t, "Abandon this story?", 2)
	h.send("y")
	h.out.waitFor(t, "Choose a genre", 2)
	if _, err := h.store.Get(context.Background(), checkpoint.DefaultKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Quit should clear the save, got %v", err)
	}

	h.send("q")
	if err := h.wait(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestRun_EnterSkipsReveal(t *testing.T) {
	gen := &scriptedGenerator{fn: twoChoiceScenes}
	h := startHarness(t, gen, models.DefaultLimits(), time.Hour, nil)

	h.out.waitFor(t, "q) Quit", 1)
	h.send("4")
	h.out.waitFor(t, "Chapter 1", 1)

	// At one character per hour the options only appear after a skip
	h.send("")
	h.out.waitFor(t, "1) Open the door", 1)
	if !strings.Contains(h.out.String(), "Scene at chapter 1 scene 1") {
		t.Errorf("Expected full scene text after skip")
	}
	if !h.ctl.State().OptionsRevealed {
		t.Error("Expected options revealed after skip")
	}

	h.send("q")
	h.out.waitFor(t, "Abandon this story?", 1)
	h.send("y")
	h.out.waitFor(t, "Choose a genre", 2)
	_ = h.input.Close()
	if err := h.wait(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestRun_ResumesSavedStory(t *testing.T) {
	seed := func(mgr *checkpoint.Manager) {
		s := models.NewSession("saved", models.GenreFantasy)
		s.Title = "Dragon Road"
		s.History = []models.HistoryEntry{{Role: models.RoleModel, Text: "The road forks."}}
		s.Current = &models.SceneData{Story: "The road forks.", Options: []string{"Go left", "Go right"}}
		if err := mgr.Save(context.Background(), models.NewSnapshot(models.PhasePlaying, s)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	gen := &scriptedGenerator{fn: twoChoiceScenes}
	h := startHarness(t, gen, models.DefaultLimits(), time.Hour, seed)

	h.out.waitFor(t, "2) Go right", 1)
	out := h.out.String()
	for _, want := range []string{"Resuming your saved story.", "Dragon Road", "The road forks."} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output", want)
		}
	}
	if gen.count() != 0 {
		t.Errorf("Resume must not generate, got %d calls", gen.count())
	}

	_ = h.input.Close()
	if err := h.wait(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestRun_InvalidSelection(t *testing.T) {
	gen := &scriptedGenerator{fn: twoChoiceScenes}
	h := startHarness(t, gen, models.DefaultLimits(), time.Nanosecond, nil)

	h.out.waitFor(t, "q) Quit", 1)
	h.send("9")
	h.out.waitFor(t, "Pick a number between 1 and 4.", 1)
	if gen.count() != 0 {
		t.Errorf("Invalid selection must not generate")
	}

	_ = h.input.Close()
	if err := h.wait(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
