package model

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// File type constants
const (
	TypeImage    = "image"
	TypeDocument = "document"
	TypeFile     = "file"
)

// Reserved category labels. CategoryUnsorted is the inbox: always present,
// always listed first, never renamable or deletable. CategoryGeneral is a
// legacy bucket that collapses to the inbox wherever it appears on an item
// but is never a selectable category itself.
const (
	CategoryUnsorted = "Unsorted"
	CategoryGeneral  = "General"
)

// Item represents one imported photo and its user-editable metadata.
// Raw bytes live in the store only, never on the Item.
type Item struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CustomName   string `json:"custom_name"`
	Type         string `json:"type"`
	Size         string `json:"size"`
	DateModified string `json:"date_modified"`
	TakenAt      string `json:"taken_at,omitempty"`
	Category     string `json:"category,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// ItemMeta is the user-assigned slice of an Item, as mirrored to the cloud
// metadata document.
type ItemMeta struct {
	CustomName string `json:"customName"`
	Category   string `json:"category"`
	Notes      string `json:"notes"`
}

// MetaPatch is a partial metadata update. Nil fields are left untouched.
type MetaPatch struct {
	CustomName *string
	Category   *string
	Notes      *string
}

// Snapshot is the serializable state pushed to (and pulled from) the cloud
// metadata mirror. It carries the category list and per-item user metadata,
// never image bytes, and is read and written as a whole document.
type Snapshot struct {
	Categories []string            `json:"categories"`
	Metadata   map[string]ItemMeta `json:"metadata"`
	LastSync   string              `json:"lastSync"`
}

// ItemID derives the stable identity for a source file from its name and
// byte size. No content hashing: a file edited in place that keeps both its
// name and size is indistinguishable from the unchanged file. This is the
// de-duplication key across folder rescans.
func ItemID(name string, size int64) string {
	return fmt.Sprintf("local-%s-%d", name, size)
}

// NewItem creates an Item for a freshly imported file. The item lands in
// the inbox and CustomName defaults to the file name.
func NewItem(name string, size int64, modTime time.Time) Item {
	return Item{
		ID:           ItemID(name, size),
		Title:        name,
		CustomName:   name,
		Type:         TypeFile,
		Size:         FormatSize(size),
		DateModified: modTime.Format("2006-01-02"),
		Category:     CategoryUnsorted,
	}
}

// IsReservedCategory reports whether name is one of the two reserved labels.
func IsReservedCategory(name string) bool {
	return name == CategoryUnsorted || name == CategoryGeneral
}

// CollapsesToUnsorted reports whether a raw category value places an item in
// the inbox: unset, the inbox sentinel, or the legacy general bucket.
func CollapsesToUnsorted(category string) bool {
	return category == "" || category == CategoryUnsorted || category == CategoryGeneral
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count for display, e.g. "2 KB" or "4.1 MB".
// Computed once at import time, never recomputed.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64) + " " + sizeUnits[i]
}
