package checkpoint

import (
	"fmt"

	"github.com/lamim/taleforge/pkg/models"
)

// ValidateSnapshot checks that a resumable snapshot can be restored under limits
func ValidateSnapshot(snap *models.Snapshot, limits models.Limits) error {
	if snap.Genre == nil {
		return fmt.Errorf("snapshot has no genre")
	}
	if _, ok := models.LookupGenre(snap.Genre.ID); !ok {
		return fmt.Errorf("unknown genre %q", snap.Genre.ID)
	}

	if p := snap.Progress(); !p.Valid(limits) {
		return fmt.Errorf("progress chapter %d scene %d is outside %dx%d",
			p.Chapter, p.Scene, limits.MaxChapters, limits.ScenesPerChapter)
	}

	for i, h := range snap.History {
		if !h.Role.Valid() {
			return fmt.Errorf("history entry %d has invalid role %q", i, h.Role)
		}
	}

	if snap.CurrentData != nil && snap.CurrentData.Story == "" {
		return fmt.Errorf("current scene has no story text")
	}

	return nil
}

// ProgressPercentage returns how far through the story a snapshot is
func ProgressPercentage(snap *models.Snapshot, limits models.Limits) float64 {
	return snap.Progress().Percent(limits)
}
