package store

import (
	"context"
	"errors"

	"github.com/jverhagen/fotomemo/internal/model"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("not found")

// Slot keys for the lightweight key-value store.
const (
	SlotFolderName = "folder_name"
	SlotFolderPath = "folder_path"
	SlotCategories = "custom_categories"
	SlotLastSync   = "last_sync"
)

// StoredFile is one record of the files table: raw bytes plus metadata,
// keyed by the item id.
type StoredFile struct {
	ID       string
	Buffer   []byte
	MimeType string
	Meta     model.Item
}

// UpsertResult reports what a batch upsert did.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// FileStore is the contract for image persistence. Every call is atomic on
// its own, but no ordering is guaranteed between independently issued
// calls; callers must not rely on cross-call ordering.
type FileStore interface {
	// UpsertMany merges a batch of freshly scanned files. Records already
	// present keep their stored category, custom name and notes; only bytes
	// and derived display fields are replaced. Records in a batch are
	// independent: one failing does not block the others.
	UpsertMany(ctx context.Context, files []StoredFile) (UpsertResult, error)

	// UpdateMetadata merges the non-nil patch fields into an existing
	// record. A missing id is a silent no-op.
	UpdateMetadata(ctx context.Context, id string, patch model.MetaPatch) error

	// DeleteMany removes the records for the given ids. Missing ids are
	// ignored. Returns the number of records actually removed.
	DeleteMany(ctx context.Context, ids []string) (int64, error)

	// LoadAll returns the metadata of every stored record. Used once per
	// full reload to rebuild the in-memory item list.
	LoadAll(ctx context.Context) ([]model.Item, error)

	// LoadBlob returns the raw bytes and MIME type for one record.
	LoadBlob(ctx context.Context, id string) ([]byte, string, error)
}

// Slots is the contract for the lightweight key-value slots (folder name,
// category list, last sync time).
type Slots interface {
	GetSlot(ctx context.Context, key string) (string, error)
	SetSlot(ctx context.Context, key, value string) error
	DeleteSlot(ctx context.Context, key string) error
}

// Repository combines file persistence and the key-value slots.
type Repository interface {
	FileStore
	Slots
}
