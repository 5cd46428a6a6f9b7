package catalog

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/estimator/internal/models"
)

// Cache memoises a Source for the life of the process. Concurrent identical
// lookups share one call. Failed lookups are not remembered, so selecting
// the same value again retries. Returned slices are shared between callers
// and must not be modified.
type Cache struct {
	src    Source
	group  singleflight.Group
	mu     sync.RWMutex
	values map[string]any
}

func NewCache(src Source) *Cache {
	return &Cache{src: src, values: make(map[string]any)}
}

func cached[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return v.(T), nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		out, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = out
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Invalidate forgets everything.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any)
}

func (c *Cache) MaterialTypes(ctx context.Context) ([]string, error) {
	return cached(ctx, c, "types", c.src.MaterialTypes)
}

func (c *Cache) MaterialDescriptions(ctx context.Context, materialType string) ([]models.MaterialOption, error) {
	return cached(ctx, c, "desc\x00"+materialType, func(ctx context.Context) ([]models.MaterialOption, error) {
		return c.src.MaterialDescriptions(ctx, materialType)
	})
}

func (c *Cache) Assemblies(ctx context.Context) ([]models.Assembly, error) {
	return cached(ctx, c, "assemblies", c.src.Assemblies)
}

func (c *Cache) AssemblyRollup(ctx context.Context, assemblyID string) (models.AssemblyRollup, error) {
	return cached(ctx, c, "rollup\x00"+assemblyID, func(ctx context.Context) (models.AssemblyRollup, error) {
		return c.src.AssemblyRollup(ctx, assemblyID)
	})
}

func (c *Cache) DjeCategories(ctx context.Context) ([]string, error) {
	return cached(ctx, c, "dje-cat", c.src.DjeCategories)
}

func (c *Cache) DjeSubcategories(ctx context.Context, category string) ([]string, error) {
	return cached(ctx, c, "dje-sub\x00"+category, func(ctx context.Context) ([]string, error) {
		return c.src.DjeSubcategories(ctx, category)
	})
}

func (c *Cache) DjeDescriptions(ctx context.Context, category, subcategory string) ([]models.DjeOption, error) {
	return cached(ctx, c, "dje-desc\x00"+category+"\x00"+subcategory, func(ctx context.Context) ([]models.DjeOption, error) {
		return c.src.DjeDescriptions(ctx, category, subcategory)
	})
}
