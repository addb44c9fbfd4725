package repositories

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"

	"github.com/desertthunder/prematch/internal/models"
)

// ListingCache holds PreDB listing pages and counts for a limited time.
//
// Entries can be stale across runs; they are flushed when the repository inserts entries.
// A nil *ListingCache is valid and caches nothing.
type ListingCache struct {
	store *cache.Cache
}

// NewListingCache creates a ListingCache whose entries expire after ttl.
//
// The go-cache janitor goroutine cleans expired entries every 2*ttl and cannot be stopped.
func NewListingCache(ttl time.Duration) *ListingCache {
	return &ListingCache{store: cache.New(ttl, 2*ttl)}
}

func pageKey(opts ListOptions) string {
	h := xxhash.New()
	h.WriteString(opts.Search)
	h.WriteString("\x00")
	h.WriteString(strconv.Itoa(opts.Offset))
	h.WriteString("\x00")
	h.WriteString(strconv.Itoa(opts.Limit))
	return "page:" + strconv.FormatUint(h.Sum64(), 16)
}

func countKey(search string) string {
	return "count:" + strconv.FormatUint(xxhash.Sum64String(search), 16)
}

// Page returns a cached copy of the page for opts.
func (c *ListingCache) Page(opts ListOptions) (*models.PreDBPage, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.store.Get(pageKey(opts))
	if !ok {
		return nil, false
	}
	return clonePage(v.(*models.PreDBPage)), true
}

// SetPage stores a copy of page for opts.
func (c *ListingCache) SetPage(opts ListOptions, page *models.PreDBPage) {
	if c == nil {
		return
	}
	c.store.SetDefault(pageKey(opts), clonePage(page))
}

// clonePage copies page and every entry it points to.
func clonePage(page *models.PreDBPage) *models.PreDBPage {
	out := *page
	out.Entries = make([]*models.PreDBEntry, len(page.Entries))
	for i, e := range page.Entries {
		entry := *e
		out.Entries[i] = &entry
	}
	return &out
}

// Count returns the cached count for search.
func (c *ListingCache) Count(search string) (int, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c.store.Get(countKey(search))
	if !ok {
		return 0, false
	}
	return v.(int), true
}

// SetCount stores the count for search.
func (c *ListingCache) SetCount(search string, n int) {
	if c == nil {
		return
	}
	c.store.SetDefault(countKey(search), n)
}

// Flush drops every cached listing.
func (c *ListingCache) Flush() {
	if c == nil {
		return
	}
	c.store.Flush()
}

// Len reports how many listings are cached, expired ones included until the janitor runs.
func (c *ListingCache) Len() int {
	if c == nil {
		return 0
	}
	return c.store.ItemCount()
}
