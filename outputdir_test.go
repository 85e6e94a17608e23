package bookexport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareOutputFolder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		setup         func(t *testing.T, out, backup string)
		wantRotation  OutputRotation
		wantBackupDoc string // file expected in backup, "" = no backup dir
	}{
		{
			name:         "nothing exists",
			setup:        func(t *testing.T, out, backup string) {},
			wantRotation: OutputRotation{},
		},
		{
			name: "empty output is kept in place",
			setup: func(t *testing.T, out, backup string) {
				if err := os.MkdirAll(out, 0o750); err != nil {
					t.Fatal(err)
				}
			},
			wantRotation: OutputRotation{},
		},
		{
			name: "non-empty output becomes backup",
			setup: func(t *testing.T, out, backup string) {
				mustWrite(t, filepath.Join(out, "book-ebook.epub"), "v1")
			},
			wantRotation:  OutputRotation{OutputMoved: true},
			wantBackupDoc: "book-ebook.epub",
		},
		{
			name: "old backup replaced",
			setup: func(t *testing.T, out, backup string) {
				mustWrite(t, filepath.Join(backup, "old.pdf"), "v0")
				mustWrite(t, filepath.Join(out, "book-ebook.pdf"), "v1")
			},
			wantRotation:  OutputRotation{BackupDeleted: true, OutputMoved: true},
			wantBackupDoc: "book-ebook.pdf",
		},
		{
			name: "backup deleted even without output",
			setup: func(t *testing.T, out, backup string) {
				mustWrite(t, filepath.Join(backup, "old.pdf"), "v0")
			},
			wantRotation: OutputRotation{BackupDeleted: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			out := filepath.Join(root, "output")
			backup := filepath.Join(root, "output_backup")
			tt.setup(t, out, backup)

			rot, err := PrepareOutputFolder(out, backup)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rot != tt.wantRotation {
				t.Errorf("rotation = %+v, want %+v", rot, tt.wantRotation)
			}

			entries, err := os.ReadDir(out)
			if err != nil {
				t.Fatalf("output dir missing: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("output dir has %d entries, want 0", len(entries))
			}

			if tt.wantBackupDoc == "" {
				if _, err := os.Stat(backup); !os.IsNotExist(err) {
					t.Errorf("expected no backup dir, stat err = %v", err)
				}
				return
			}
			if _, err := os.Stat(filepath.Join(backup, tt.wantBackupDoc)); err != nil {
				t.Errorf("expected %s in backup: %v", tt.wantBackupDoc, err)
			}
			if _, err := os.Stat(filepath.Join(backup, "old.pdf")); !os.IsNotExist(err) {
				t.Errorf("old backup generation still present")
			}
		})
	}
}
