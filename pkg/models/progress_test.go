package models

import "testing"

func TestProgressNext(t *testing.T) {
	limits := DefaultLimits()

	for chapter := 1; chapter <= limits.MaxChapters; chapter++ {
		for scene := 1; scene <= limits.ScenesPerChapter; scene++ {
			p := Progress{Chapter: chapter, Scene: scene}
			if p.IsFinale(limits) {
				continue
			}
			got := p.Next(limits)

			want := Progress{Chapter: chapter, Scene: scene + 1}
			if scene == limits.ScenesPerChapter {
				want = Progress{Chapter: chapter + 1, Scene: 1}
			}
			if got != want {
				t.Errorf("Next(%v) = %v, want %v", p, got, want)
			}
		}
	}
}

func TestProgressNeverExceedsFinale(t *testing.T) {
	limits := DefaultLimits()
	p := StartProgress()

	steps := 0
	for !p.IsFinale(limits) {
		p = p.Next(limits)
		steps++
		if !p.Valid(limits) {
			t.Fatalf("reached invalid progress %v after %d steps", p, steps)
		}
	}

	if steps != limits.TotalScenes()-1 {
		t.Errorf("Expected %d steps to the finale, got %d", limits.TotalScenes()-1, steps)
	}
	want := Progress{Chapter: limits.MaxChapters, Scene: limits.ScenesPerChapter}
	if p != want {
		t.Errorf("Expected finale %v, got %v", want, p)
	}
	if next := p.Next(limits); next != p {
		t.Errorf("Next() past the finale = %v, want %v", next, p)
	}
}

func TestProgressScenarioChapterRollover(t *testing.T) {
	got := Progress{Chapter: 2, Scene: 5}.Next(DefaultLimits())
	if got != (Progress{Chapter: 3, Scene: 1}) {
		t.Errorf("Expected (3,1), got %v", got)
	}
}

func TestProgressPercent(t *testing.T) {
	limits := DefaultLimits()
	tests := []struct {
		p    Progress
		want float64
	}{
		{Progress{Chapter: 1, Scene: 1}, 4.0},
		{Progress{Chapter: 3, Scene: 3}, 52.0},
		{Progress{Chapter: 5, Scene: 5}, 100.0},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(limits); got != tt.want {
			t.Errorf("Percent(%v) = %.1f, want %.1f", tt.p, got, tt.want)
		}
	}
	if got := StartProgress().Percent(Limits{}); got != 0 {
		t.Errorf("Percent with empty limits = %.1f, want 0", got)
	}
}

func TestLoadingMessages(t *testing.T) {
	for _, g := range Genres() {
		if msgs := LoadingMessages(g.ID); len(msgs) != 5 {
			t.Errorf("genre %s: expected 5 loading messages, got %d", g.ID, len(msgs))
		}
	}
	if msgs := LoadingMessages("western"); len(msgs) != 3 {
		t.Errorf("Expected 3 default loading messages, got %d", len(msgs))
	}
}

func TestSnapshotRoundTripSession(t *testing.T) {
	s := NewSession("abc", GenreHorror)
	s.Title = "The Cellar"
	s.History = append(s.History, HistoryEntry{Role: RoleModel, Text: "It was dark."})
	s.Current = &SceneData{Story: "It was dark.", Options: []string{"Run", "Hide"}}

	snap := NewSnapshot(PhasePlaying, s)
	if !snap.Resumable() {
		t.Fatal("Expected playing snapshot with current data to be resumable")
	}

	// Mutating the session must not leak into the snapshot
	s.Current.Options[0] = "changed"
	s.History[0].Text = "changed"

	back := snap.Session()
	if back.Current.Options[0] != "Run" || back.History[0].Text != "It was dark." {
		t.Errorf("Snapshot shares memory with the live session: %+v", back)
	}
	if back.Genre != GenreHorror || back.Title != "The Cellar" || back.ID != "abc" {
		t.Errorf("Unexpected restored session: %+v", back)
	}
}
