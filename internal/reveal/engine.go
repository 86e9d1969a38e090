package reveal

import (
	"sync"
	"time"
)

const (
	// DefaultInterval is the delay between revealed characters
	DefaultInterval = 30 * time.Millisecond
	// DefaultFrame is the scheduler tick
	DefaultFrame = 16 * time.Millisecond
)

// Options configures an Engine.
// Callbacks run on the engine's goroutine or the caller's, never under the engine lock.
type Options struct {
	Interval   time.Duration
	Frame      time.Duration
	OnUpdate   func(id uint64, text string) // Revealed prefix changed
	OnComplete func(id uint64)              // Full text revealed, at most once per Start
}

// Engine reveals a target string one character at a time.
// Each Start supersedes the previous reveal; the returned id tags every
// callback so consumers can drop events from an older target.
type Engine struct {
	interval   time.Duration
	frame      time.Duration
	onUpdate   func(uint64, string)
	onComplete func(uint64)

	mu       sync.Mutex
	id       uint64
	target   []rune
	revealed int
	done     bool
	stop     chan struct{} // Closes the running loop; nil when no loop is running
}

// New creates an idle engine
func New(opts Options) *Engine {
	if opts.Interval < 0 {
		opts.Interval = 0
	}
	if opts.Frame <= 0 {
		opts.Frame = DefaultFrame
	}
	if opts.OnUpdate == nil {
		opts.OnUpdate = func(uint64, string) {}
	}
	if opts.OnComplete == nil {
		opts.OnComplete = func(uint64) {}
	}
	return &Engine{
		interval:   opts.Interval,
		frame:      opts.Frame,
		onUpdate:   opts.OnUpdate,
		onComplete: opts.OnComplete,
		done:       true,
	}
}

// Start begins revealing target from an empty prefix and returns the reveal id.
// With alreadyRevealed the full text is shown and completion fires immediately.
func (e *Engine) Start(target string, alreadyRevealed bool) uint64 {
	e.mu.Lock()
	e.cancelLocked()
	e.id++
	id := e.id
	e.target = []rune(target)
	e.revealed = 0
	e.done = false

	if alreadyRevealed || len(e.target) == 0 {
		e.revealed = len(e.target)
		e.done = true
		e.mu.Unlock()

		e.onUpdate(id, target)
		e.onComplete(id)
		return id
	}

	stop := make(chan struct{})
	e.stop = stop
	e.mu.Unlock()

	e.onUpdate(id, "")
	go e.run(id, stop)
	return id
}

func (e *Engine) run(id uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(e.frame)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if now.Sub(last) < e.interval {
				continue
			}
			last = now

			e.mu.Lock()
			if e.id != id || e.done {
				e.mu.Unlock()
				return
			}
			e.revealed++
			prefix := string(e.target[:e.revealed])
			finished := e.revealed >= len(e.target)
			if finished {
				e.done = true
				e.stop = nil
			}
			e.mu.Unlock()

			e.onUpdate(id, prefix)
			if finished {
				e.onComplete(id)
				return
			}
		}
	}
}

// Skip reveals the whole target at once and completes the current reveal.
// It reports false when there is nothing left to skip.
func (e *Engine) Skip() bool {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return false
	}
	e.cancelLocked()
	e.revealed = len(e.target)
	e.done = true
	id := e.id
	full := string(e.target)
	e.mu.Unlock()

	e.onUpdate(id, full)
	e.onComplete(id)
	return true
}

// Close stops any running reveal without completing it
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.done = true
}

// Text returns the currently revealed prefix
func (e *Engine) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.target[:e.revealed])
}

// Done reports whether the current reveal has finished
func (e *Engine) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// ID returns the id of the current reveal
func (e *Engine) ID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

func (e *Engine) cancelLocked() {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}
