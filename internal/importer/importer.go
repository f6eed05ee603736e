// Package importer turns source files into store records: it derives the
// item identity and display metadata, filters the batch down to images, and
// reads photo folders from disk.
package importer

import (
	"bytes"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/jverhagen/fotomemo/internal/model"
	"github.com/jverhagen/fotomemo/internal/store"
)

// SourceFile is the import boundary: one file-like input with the fields
// needed to derive an item.
type SourceFile struct {
	Name     string
	Size     int64
	MimeType string
	ModTime  time.Time
	Data     []byte
}

// Process converts a batch of source files into store records, silently
// dropping everything that is not an image. Identity is derived from name
// and size only, so reprocessing the same folder yields the same ids.
func Process(files []SourceFile) []store.StoredFile {
	records := make([]store.StoredFile, 0, len(files))
	for _, f := range files {
		if model.FileTypeOf(f.Name, f.MimeType) != model.TypeImage {
			continue
		}
		meta := model.NewItem(f.Name, f.Size, f.ModTime)
		meta.Type = model.TypeImage
		meta.TakenAt = takenAt(f.Data)
		records = append(records, store.StoredFile{
			ID:       meta.ID,
			Buffer:   f.Data,
			MimeType: f.MimeType,
			Meta:     meta,
		})
	}
	return records
}

// takenAt extracts the capture date from EXIF data. Photos without usable
// EXIF (PNGs, screenshots, stripped files) simply get an empty value; the
// file modification date still covers display.
func takenAt(data []byte) string {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	t, err := x.DateTime()
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// ReadFolder reads every regular file in dir (non-recursive) into source
// files. Unreadable entries are logged and skipped so one bad file does
// not abort a scan.
func ReadFolder(dir string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	var files []SourceFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("skipping unreadable entry", "name", entry.Name(), "error", err)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("skipping unreadable file", "name", entry.Name(), "error", err)
			continue
		}
		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     info.Size(),
			MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(entry.Name()))),
			ModTime:  info.ModTime(),
			Data:     data,
		})
	}
	return files, nil
}
