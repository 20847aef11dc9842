package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TempDir owns the temporary directory an archive is written into. The
// directory must outlive any use of the archive path; Close removes it.
type TempDir struct {
	path string
}

func newTempDir(runID uuid.UUID) (*TempDir, error) {
	path := filepath.Join(os.TempDir(), "chatmap-"+runID.String())
	if err := os.Mkdir(path, 0700); err != nil {
		return nil, err
	}
	return &TempDir{path: path}, nil
}

// Path returns the directory path.
func (d *TempDir) Path() string {
	return d.path
}

// Close removes the directory and everything in it.
func (d *TempDir) Close() {
	_ = os.RemoveAll(d.path)
}

// writeArchive serializes the manifest and one chat_NNN.json per exported
// chat into export.zip under dir, deflate-compressed. File order and JSON
// rendering are fixed, so the archive bytes are stable for fixed inputs.
func writeArchive(dir string, chats []ExportedChat, totalMessages int) (string, error) {
	archivePath := filepath.Join(dir, "export.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	w := zip.NewWriter(f)

	m := manifest{
		Version:       manifestVersion,
		Source:        manifestSource,
		ExportDate:    time.Now().UTC().Format(time.RFC3339),
		ChatCount:     len(chats),
		TotalMessages: totalMessages,
	}
	if err := writeArchiveJSON(w, "manifest.json", m); err != nil {
		cleanupArchive(w, f, archivePath)
		return "", err
	}

	for i, chat := range chats {
		name := fmt.Sprintf("chat_%03d.json", i)
		if err := writeArchiveJSON(w, name, chat); err != nil {
			cleanupArchive(w, f, archivePath)
			return "", err
		}
	}

	if err := w.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(archivePath)
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(archivePath)
		return "", fmt.Errorf("close archive: %w", err)
	}
	return archivePath, nil
}

func writeArchiveJSON(w *zip.Writer, name string, v any) error {
	entry, err := w.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func cleanupArchive(w *zip.Writer, f *os.File, path string) {
	_ = w.Close()
	_ = f.Close()
	_ = os.Remove(path)
}
