package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// Filename is "{Title}_YYYY-MM-DD_HHMMSS.{ext}", e.g.
// Plukkliste_2026-03-02_093000.pdf.
func Filename(doc Document, format Format) string {
	return fmt.Sprintf("%s_%s.%s", doc.Title(), doc.ExportedAt.Local().Format("2006-01-02_150405"), format)
}

// Write renders doc and writes it into dir without leaving a partial file
// behind. It returns the written path.
func (f *Formatter) Write(dir string, doc Document, format Format) (string, error) {
	blob, err := f.Render(doc, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, Filename(doc, format))
	if err := atomic.WriteFile(path, bytes.NewReader(blob)); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	// atomic.WriteFile keeps the temp file's 0600 mode on new files
	if err := os.Chmod(path, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
