package library

import (
	"slices"

	"github.com/jverhagen/fotomemo/internal/model"
)

// CategoryView is one row of the category grid projection.
type CategoryView struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	CoverID string `json:"cover_id,omitempty"`
}

// Counts returns per-category item counts. Items whose category is unset,
// reserved, or unknown to the current list count toward the inbox.
func (l *Library) Counts() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts()
}

// counts assumes l.mu is held.
func (l *Library) counts() map[string]int {
	counts := make(map[string]int)
	for _, c := range l.categories() {
		counts[c] = 0
	}
	for _, it := range l.items {
		if _, known := counts[it.Category]; known {
			counts[it.Category]++
		} else {
			counts[model.CategoryUnsorted]++
		}
	}
	return counts
}

// Covers maps each raw category to the id of its cover image: the first
// image-typed item carrying that exact category, in list order.
func (l *Library) Covers() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.covers()
}

// covers assumes l.mu is held.
func (l *Library) covers() map[string]string {
	covers := make(map[string]string)
	for _, it := range l.items {
		if it.Category == "" || it.Type != model.TypeImage {
			continue
		}
		if _, ok := covers[it.Category]; !ok {
			covers[it.Category] = it.ID
		}
	}
	return covers
}

// Overview combines the category list with counts and covers for the
// category grid.
func (l *Library) Overview() []CategoryView {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := l.counts()
	covers := l.covers()
	cats := l.categories()

	views := make([]CategoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, CategoryView{Name: c, Count: counts[c], CoverID: covers[c]})
	}
	return views
}

// ItemsIn returns the items shown for a selected category: exact match on
// the raw value, except the inbox, which additionally catches every item
// whose category does not resolve to a known user category.
func (l *Library) ItemsIn(category string) []model.Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.Item
	for _, it := range l.items {
		raw := it.Category
		if raw == "" {
			raw = model.CategoryUnsorted
		}
		if category == model.CategoryUnsorted {
			if raw == model.CategoryUnsorted || !slices.Contains(l.custom, raw) {
				out = append(out, it)
			}
		} else if raw == category {
			out = append(out, it)
		}
	}
	return out
}

// Items returns a copy of the full item list in load order.
func (l *Library) Items() []model.Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}
