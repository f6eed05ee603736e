// Package library holds the in-memory projection of the photo collection:
// the item list, the user-defined category list, and the operations the UI
// exposes. All durable state lives in the store; the library reconciles the
// two on every full load.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jverhagen/fotomemo/internal/model"
	"github.com/jverhagen/fotomemo/internal/store"
)

// Library is the single mutation point for the collection. A mutex
// serializes user-initiated mutations, standing in for the single-flight
// interaction a UI would guarantee.
type Library struct {
	mu   sync.Mutex
	repo store.Repository

	items  []model.Item
	custom []string // user-created categories, creation order

	folderName string
	folderPath string

	// Session-scoped, never persisted across restarts.
	activeView     string
	activeCategory string

	onChange func()
}

// New creates a Library on top of a storage repository.
func New(repo store.Repository) *Library {
	return &Library{repo: repo}
}

// SetOnChange registers a callback fired after every successful mutation.
// The sync mirror uses it to schedule a debounced push.
func (l *Library) SetOnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

func (l *Library) markDirty() {
	if l.onChange != nil {
		l.onChange()
	}
}

// Load rebuilds the in-memory state from the store. It runs the
// self-healing category scan: any category referenced by an item but
// missing from the persisted list is recreated, so losing the list alone
// never orphans items into the inbox. Safe to call repeatedly.
func (l *Library) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// load assumes l.mu is held.
func (l *Library) load(ctx context.Context) error {
	items, err := l.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	for i := range items {
		if items[i].CustomName == "" {
			items[i].CustomName = items[i].Title
		}
	}
	l.items = items

	custom, err := l.loadCategorySlot(ctx)
	if err != nil {
		return err
	}

	// Self-healing: union the categories items actually reference into the
	// persisted list, excluding the two reserved sentinels.
	changed := false
	for _, it := range items {
		cat := it.Category
		if model.CollapsesToUnsorted(cat) || slices.Contains(custom, cat) {
			continue
		}
		custom = append(custom, cat)
		changed = true
	}
	l.custom = custom
	if changed {
		if err := l.persistCategories(ctx); err != nil {
			return err
		}
	}

	if l.folderName, err = l.repo.GetSlot(ctx, store.SlotFolderName); err != nil {
		return fmt.Errorf("load folder name: %w", err)
	}
	if l.folderPath, err = l.repo.GetSlot(ctx, store.SlotFolderPath); err != nil {
		return fmt.Errorf("load folder path: %w", err)
	}
	return nil
}

func (l *Library) loadCategorySlot(ctx context.Context) ([]string, error) {
	raw, err := l.repo.GetSlot(ctx, store.SlotCategories)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var saved []string
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		// A corrupt slot is recoverable: the self-healing scan rebuilds the
		// list from item metadata.
		return nil, nil
	}
	custom := saved[:0]
	for _, c := range saved {
		if !model.IsReservedCategory(c) {
			custom = append(custom, c)
		}
	}
	return custom, nil
}

// persistCategories assumes l.mu is held.
func (l *Library) persistCategories(ctx context.Context) error {
	b, err := json.Marshal(l.custom)
	if err != nil {
		return err
	}
	if err := l.repo.SetSlot(ctx, store.SlotCategories, string(b)); err != nil {
		return fmt.Errorf("persist categories: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Folder
// ---------------------------------------------------------------------------

// SetFolder records the selected source folder (display name and path).
func (l *Library) SetFolder(ctx context.Context, path, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.repo.SetSlot(ctx, store.SlotFolderName, name); err != nil {
		return err
	}
	if err := l.repo.SetSlot(ctx, store.SlotFolderPath, path); err != nil {
		return err
	}
	l.folderName = name
	l.folderPath = path
	return nil
}

// FolderName returns the cached display name of the source folder.
func (l *Library) FolderName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.folderName
}

// FolderPath returns the cached path of the source folder, "" if none.
func (l *Library) FolderPath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.folderPath
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// Import merges a batch of freshly scanned files through the store's upsert
// reconciler and reloads the projection. Returns how many files were new.
// Existing files keep their category, custom name and notes, so a rescan is
// always safe to repeat.
func (l *Library) Import(ctx context.Context, files []store.StoredFile) (added int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, upsertErr := l.repo.UpsertMany(ctx, files)
	if loadErr := l.load(ctx); loadErr != nil {
		return res.Inserted, errors.Join(upsertErr, loadErr)
	}
	l.markDirty()
	return res.Inserted, upsertErr
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

// Categories returns the display list: the inbox first, then the user
// categories in lexicographic order.
func (l *Library) Categories() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.categories()
}

// categories assumes l.mu is held.
func (l *Library) categories() []string {
	sorted := slices.Clone(l.custom)
	slices.SortFunc(sorted, func(a, b string) int { return strings.Compare(a, b) })
	return append([]string{model.CategoryUnsorted}, sorted...)
}

// CreateCategory adds a user category. Reserved names and duplicates are
// rejected and leave state unchanged.
func (l *Library) CreateCategory(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.createCategory(ctx, name); err != nil {
		return err
	}
	l.markDirty()
	return nil
}

// createCategory assumes l.mu is held.
func (l *Library) createCategory(ctx context.Context, name string) error {
	if name == "" {
		return model.ErrEmptyCategory
	}
	if model.IsReservedCategory(name) {
		return model.ErrReservedCategory
	}
	if slices.Contains(l.custom, name) {
		return model.ErrCategoryExists
	}
	l.custom = append(l.custom, name)
	return l.persistCategories(ctx)
}

// RenameCategory renames a user category and re-points every member item.
// Each item update is persisted independently: a failure partway leaves
// some items renamed and some not, corrected by the next self-healing load.
func (l *Library) RenameCategory(ctx context.Context, oldName, newName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if newName == "" {
		return model.ErrEmptyCategory
	}
	if newName == oldName {
		return nil
	}
	if model.IsReservedCategory(oldName) || model.IsReservedCategory(newName) {
		return model.ErrReservedCategory
	}
	if slices.Contains(l.custom, newName) {
		return model.ErrCategoryExists
	}
	i := slices.Index(l.custom, oldName)
	if i < 0 {
		return model.ErrUnknownCategory
	}

	l.custom[i] = newName
	if err := l.persistCategories(ctx); err != nil {
		return err
	}

	err := l.retargetItems(ctx, oldName, newName)
	l.markDirty()
	return err
}

// DeleteCategory removes a user category; member items fall back to the
// inbox. Same best-effort per-item persistence as RenameCategory.
func (l *Library) DeleteCategory(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if model.IsReservedCategory(name) {
		return model.ErrReservedCategory
	}
	i := slices.Index(l.custom, name)
	if i < 0 {
		return model.ErrUnknownCategory
	}

	l.custom = slices.Delete(l.custom, i, i+1)
	if err := l.persistCategories(ctx); err != nil {
		return err
	}

	err := l.retargetItems(ctx, name, model.CategoryUnsorted)
	l.markDirty()
	return err
}

// retargetItems moves every item at from to to, one independently persisted
// update per item. Assumes l.mu is held.
func (l *Library) retargetItems(ctx context.Context, from, to string) error {
	var errs []error
	for i := range l.items {
		if l.items[i].Category != from {
			continue
		}
		l.items[i].Category = to
		if err := l.repo.UpdateMetadata(ctx, l.items[i].ID, model.MetaPatch{Category: &to}); err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", l.items[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// UpdateItem applies a full metadata edit to one item. Assigning a category
// that does not exist yet creates it implicitly.
func (l *Library) UpdateItem(ctx context.Context, id, customName, category, notes string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}

	if !model.IsReservedCategory(category) && category != "" && !slices.Contains(l.custom, category) {
		if err := l.createCategory(ctx, category); err != nil {
			return err
		}
	}

	l.items[i].CustomName = customName
	l.items[i].Category = category
	l.items[i].Notes = notes

	err := l.repo.UpdateMetadata(ctx, id, model.MetaPatch{
		CustomName: &customName,
		Category:   &category,
		Notes:      &notes,
	})
	l.markDirty()
	return err
}

// MoveItems assigns the target category to every given item, one
// independently persisted update per item. Like UpdateItem, an unknown
// target category is created implicitly.
func (l *Library) MoveItems(ctx context.Context, ids []string, target string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !model.IsReservedCategory(target) && target != "" && !slices.Contains(l.custom, target) {
		if err := l.createCategory(ctx, target); err != nil {
			return err
		}
	}

	var errs []error
	for _, id := range ids {
		i := l.indexOf(id)
		if i < 0 {
			continue
		}
		l.items[i].Category = target
		if err := l.repo.UpdateMetadata(ctx, id, model.MetaPatch{Category: &target}); err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", id, err))
		}
	}
	l.markDirty()
	return errors.Join(errs...)
}

// DeleteItems removes items and their bytes for good. Missing ids are
// ignored. Returns how many records were actually removed.
func (l *Library) DeleteItems(ctx context.Context, ids []string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = slices.DeleteFunc(l.items, func(it model.Item) bool {
		return slices.Contains(ids, it.ID)
	})
	deleted, err := l.repo.DeleteMany(ctx, ids)
	l.markDirty()
	return deleted, err
}

// Item returns one item by id.
func (l *Library) Item(id string) (model.Item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(id); i >= 0 {
		return l.items[i], true
	}
	return model.Item{}, false
}

// indexOf assumes l.mu is held.
func (l *Library) indexOf(id string) int {
	return slices.IndexFunc(l.items, func(it model.Item) bool { return it.ID == id })
}

// ---------------------------------------------------------------------------
// Session state
// ---------------------------------------------------------------------------

// ActiveView returns the session-scoped view and category last set.
func (l *Library) ActiveView() (view, category string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeView, l.activeCategory
}

// SetActiveView records the current view for the session. Not durable.
func (l *Library) SetActiveView(view, category string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeView = view
	l.activeCategory = category
}

// ---------------------------------------------------------------------------
// Cloud mirror boundary
// ---------------------------------------------------------------------------

// Snapshot produces the serializable state the cloud mirror pushes:
// category list plus per-item user metadata, never image bytes.
func (l *Library) Snapshot() model.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	meta := make(map[string]model.ItemMeta, len(l.items))
	for _, it := range l.items {
		meta[it.ID] = model.ItemMeta{
			CustomName: it.CustomName,
			Category:   it.Category,
			Notes:      it.Notes,
		}
	}
	return model.Snapshot{
		Categories: slices.Clone(l.custom),
		Metadata:   meta,
	}
}

// ApplySnapshot merges a retrieved snapshot onto existing records: the
// category list is unioned in, and metadata is applied by id. Ids unknown
// to the store are silently skipped (metadata without bytes is useless).
func (l *Library) ApplySnapshot(ctx context.Context, snap model.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for _, c := range snap.Categories {
		if c == "" || model.IsReservedCategory(c) || slices.Contains(l.custom, c) {
			continue
		}
		l.custom = append(l.custom, c)
		changed = true
	}
	if changed {
		if err := l.persistCategories(ctx); err != nil {
			return err
		}
	}

	var errs []error
	for id, m := range snap.Metadata {
		err := l.repo.UpdateMetadata(ctx, id, model.MetaPatch{
			CustomName: &m.CustomName,
			Category:   &m.Category,
			Notes:      &m.Notes,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", id, err))
		}
	}
	if err := l.load(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
