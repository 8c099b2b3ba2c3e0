// Package images ищет картинки компонентов. Отсутствие картинки не ошибка.
package images

import (
	"context"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Driver string

const (
	DriverNone Driver = "none"
	DriverFS   Driver = "fs"
	DriverS3   Driver = "s3"
)

// DefaultExtensions порядок перебора расширений.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// None никогда ничего не находит.
type None struct{}

func (None) ResolveImage(context.Context, string) (string, bool, error) { return "", false, nil }

type entry struct {
	url   string
	found bool
}

// Cached кэширует и попадания, и промахи. Ошибки не кэшируются.
// TTL должен быть меньше срока жизни presigned-ссылок.
type Cached struct {
	inner bom.ImageResolver
	cache *expirable.LRU[string, entry]
}

func NewCached(inner bom.ImageResolver, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 4096
	}
	return &Cached{inner: inner, cache: expirable.NewLRU[string, entry](size, nil, ttl)}
}

func (c *Cached) ResolveImage(ctx context.Context, id string) (string, bool, error) {
	if e, ok := c.cache.Get(id); ok {
		return e.url, e.found, nil
	}
	url, found, err := c.inner.ResolveImage(ctx, id)
	if err != nil {
		return "", false, err
	}
	c.cache.Add(id, entry{url: url, found: found})
	return url, found, nil
}

// Purge сбрасывает кэш (например, после загрузки новых картинок).
func (c *Cached) Purge() { c.cache.Purge() }

func (c *Cached) Len() int { return c.cache.Len() }
