package trexim

import (
	"context"
	"sync"
	"time"
)

// PostCache is an in-memory cache of published posts and active reference
// data with a TTL. Admin writes call Invalidate.
type PostCache struct {
	mu      sync.RWMutex
	posts   []BlogPost
	refs    References
	loaded  bool
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewPostCache creates a PostCache backed by the given Store.
func NewPostCache(s *Store, ttl time.Duration) *PostCache {
	return &PostCache{store: s, ttl: ttl}
}

func (c *PostCache) valid() bool {
	return c.loaded && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.refs = References{}
	c.loaded = false
	c.mu.Unlock()
}

func (c *PostCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	posts, err := c.store.ListPosts(ctx, LangUK, "")
	if err != nil {
		return err
	}
	categories, err := c.store.ListCategories(ctx, true)
	if err != nil {
		return err
	}
	tags, err := c.store.ListTags(ctx, true)
	if err != nil {
		return err
	}
	c.posts = posts
	c.refs = References{Categories: categories, Tags: tags}
	c.loaded = true
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached posts and references after ensuring the cache
// is fresh. It tries a read lock first and only takes the write lock to reload.
func (c *PostCache) ensureLoaded(ctx context.Context) ([]BlogPost, References, error) {
	c.mu.RLock()
	if c.valid() {
		posts, refs := c.posts, c.refs
		c.mu.RUnlock()
		return posts, refs, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, References{}, err
	}
	return c.posts, c.refs, nil
}

// ListPosts returns published posts available in lang, optionally filtered
// by tag code.
func (c *PostCache) ListPosts(ctx context.Context, lang Lang, tag string) ([]BlogPost, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return filterPosts(posts, lang, tag), nil
}

// ListHomepagePosts returns up to limit posts flagged for the landing page.
func (c *PostCache) ListHomepagePosts(ctx context.Context, lang Lang, limit int) ([]BlogPost, error) {
	posts, err := c.ListPosts(ctx, lang, "")
	if err != nil {
		return nil, err
	}
	var out []BlogPost
	for _, p := range posts {
		if !p.ShowOnHomepage {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// References returns active categories and tags.
func (c *PostCache) References(ctx context.Context) (References, error) {
	_, refs, err := c.ensureLoaded(ctx)
	return refs, err
}

// GetPost returns a single published post by slug from the cache.
func (c *PostCache) GetPost(ctx context.Context, slug string) (BlogPost, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return BlogPost{}, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return BlogPost{}, ErrNotFound
}
