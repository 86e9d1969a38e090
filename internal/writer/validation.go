package writer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// TranscriptExt is the required extension of exported transcripts
const TranscriptExt = ".jsonl"

// ValidateExportPath checks a transcript destination supplied on the command line.
// It rejects:
//   - empty paths
//   - parent directory segments (..)
//   - control characters
//   - extensions other than .jsonl
func ValidateExportPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("export path cannot be empty")
	}

	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return fmt.Errorf("invalid export path: contains '..' (path traversal attempt)")
		}
	}

	for _, r := range path {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("invalid export path: contains control characters")
		}
	}

	if !strings.EqualFold(filepath.Ext(path), TranscriptExt) {
		return fmt.Errorf("invalid export path: expected a %s file, got %q", TranscriptExt, filepath.Base(path))
	}

	return nil
}
