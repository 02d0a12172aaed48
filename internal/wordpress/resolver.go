package wordpress

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-pagesync/internal/logging"
	"github.com/goliatone/go-pagesync/pkg/interfaces"
)

// SlugResolver maps slugs to remote page ids, memoising hits for the
// lifetime of one run. Misses are not cached so a page created later in the
// run becomes resolvable.
type SlugResolver struct {
	client     interfaces.PageClient
	collection string
	logger     interfaces.Logger

	mu    sync.Mutex
	cache map[string]int
}

// NewSlugResolver builds a resolver querying collection through client.
func NewSlugResolver(client interfaces.PageClient, collection string, logger interfaces.Logger) *SlugResolver {
	return &SlugResolver{
		client:     client,
		collection: collectionPath(collection),
		logger:     logging.Ensure(logger),
		cache:      map[string]int{},
	}
}

// Resolve returns the id of the page with the given slug. A missing page is
// reported as found=false with a nil error.
func (r *SlugResolver) Resolve(ctx context.Context, slug string) (int, bool, error) {
	key := strings.TrimSpace(slug)
	if key == "" {
		return 0, false, nil
	}

	if id, ok := r.cached(key); ok {
		r.logger.Trace("pagesync.resolver.cache_hit", "slug", key, "page_id", id)
		return id, true, nil
	}

	page, found, err := r.client.FindPageBySlug(ctx, r.collection, key)
	if err != nil {
		return 0, false, err
	}
	if !found || page == nil {
		return 0, false, nil
	}

	r.Remember(key, page.ID)
	return page.ID, true, nil
}

// Remember records slug → id, typically after a create or update.
func (r *SlugResolver) Remember(slug string, id int) {
	key := strings.TrimSpace(slug)
	if key == "" || id <= 0 {
		return
	}
	r.mu.Lock()
	r.cache[key] = id
	r.mu.Unlock()
}

// Len returns the number of cached slugs.
func (r *SlugResolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *SlugResolver) cached(slug string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.cache[slug]
	return id, ok
}
