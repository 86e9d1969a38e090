package models

// Story pacing defaults
const (
	DefaultMaxChapters      = 5
	DefaultScenesPerChapter = 5
)

// Limits bounds the chapter/scene progression of a story
type Limits struct {
	MaxChapters      int
	ScenesPerChapter int
}

// DefaultLimits returns the standard 5x5 story shape
func DefaultLimits() Limits {
	return Limits{MaxChapters: DefaultMaxChapters, ScenesPerChapter: DefaultScenesPerChapter}
}

// TotalScenes returns the number of scenes in a complete story
func (l Limits) TotalScenes() int {
	return l.MaxChapters * l.ScenesPerChapter
}

// Progress is the position of the current scene in the story
type Progress struct {
	Chapter int `json:"chapter"`
	Scene   int `json:"scene"`
}

// StartProgress is the position of the opening scene
func StartProgress() Progress {
	return Progress{Chapter: 1, Scene: 1}
}

// Next returns the position after p. The terminal scene is never exceeded.
func (p Progress) Next(l Limits) Progress {
	if p.IsFinale(l) {
		return p
	}
	next := Progress{Chapter: p.Chapter, Scene: p.Scene + 1}
	if next.Scene > l.ScenesPerChapter {
		next.Scene = 1
		next.Chapter++
	}
	return next
}

// IsFinale reports whether p is the terminal scene
func (p Progress) IsFinale(l Limits) bool {
	return p.Chapter == l.MaxChapters && p.Scene == l.ScenesPerChapter
}

// Valid reports whether p lies inside the bounds of l
func (p Progress) Valid(l Limits) bool {
	return p.Chapter >= 1 && p.Chapter <= l.MaxChapters &&
		p.Scene >= 1 && p.Scene <= l.ScenesPerChapter
}

// Ordinal returns the 1-based index of the scene across the whole story
func (p Progress) Ordinal(l Limits) int {
	return (p.Chapter-1)*l.ScenesPerChapter + p.Scene
}

// Percent returns how far through the story p is
func (p Progress) Percent(l Limits) float64 {
	total := l.TotalScenes()
	if total == 0 {
		return 0.0
	}
	return float64(p.Ordinal(l)) / float64(total) * 100.0
}
