package bookexport

import (
	"fmt"
	"os"

	"github.com/alnah/go-bookexport/internal/fileutil"
)

// OutputRotation reports what PrepareOutputFolder did.
type OutputRotation struct {
	BackupDeleted bool
	OutputMoved   bool
}

// PrepareOutputFolder rotates the output directory before a build:
//  1. an existing backup is deleted
//  2. a non-empty output directory is renamed to the backup
//  3. a fresh empty output directory is created
//
// At most one backup generation exists. A missing output directory is not
// an error.
func PrepareOutputFolder(outputDir, backupDir string) (OutputRotation, error) {
	var rot OutputRotation

	if fileutil.PathExists(backupDir) {
		if err := os.RemoveAll(backupDir); err != nil {
			return rot, fmt.Errorf("deleting backup %s: %w", backupDir, err)
		}
		rot.BackupDeleted = true
	}

	empty, err := fileutil.IsDirEmpty(outputDir)
	if err != nil {
		return rot, fmt.Errorf("inspecting output %s: %w", outputDir, err)
	}
	if !empty {
		if err := os.Rename(outputDir, backupDir); err != nil {
			return rot, fmt.Errorf("moving output to backup: %w", err)
		}
		rot.OutputMoved = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return rot, fmt.Errorf("creating output %s: %w", outputDir, err)
	}
	return rot, nil
}
