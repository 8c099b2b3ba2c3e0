package bom

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Spok95/bom-tracker/internal/infra/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ImageResolver ищет картинку компонента. found=false без ошибки обычный случай.
type ImageResolver interface {
	ResolveImage(ctx context.Context, componentMaterial string) (url string, found bool, err error)
}

type Normalizer struct {
	images  ImageResolver
	timeout time.Duration
	log     *zap.Logger
}

// NewNormalizer images может быть nil, тогда ImageURL всегда nil.
func NewNormalizer(images ImageResolver, lookupTimeout time.Duration, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{images: images, timeout: lookupTimeout, log: log.With(zap.String("component", "normalizer"))}
}

// Normalize строит по одному Item на каждый ключ raw, отсортированно по ComponentMaterial.
// Картинки резолвятся параллельно; промахи и ошибки дают ImageURL=nil и не валят пачку.
// Ошибка возвращается только если отменён сам ctx.
func (n *Normalizer) Normalize(ctx context.Context, raw map[string]RawRecord) ([]Item, error) {
	started := time.Now()
	defer func() { metrics.NormalizeDuration.Observe(time.Since(started).Seconds()) }()

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]Item, len(ids))
	for i, id := range ids {
		items[i] = ParseRecord(id, raw[id])
	}
	if n.images == nil || len(items) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return items, nil
	}

	var g errgroup.Group
	for i := range items {
		g.Go(func() error {
			items[i].ImageURL = n.resolve(ctx, items[i].ComponentMaterial)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (n *Normalizer) resolve(ctx context.Context, id string) (out *string) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("image resolver panicked", zap.String("id", id), zap.Any("panic", r))
			metrics.ImageLookups.WithLabelValues("error").Inc()
			out = nil
		}
	}()

	lctx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	url, found, err := n.images.ResolveImage(lctx, id)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			n.log.Debug("image lookup failed", zap.String("id", id), zap.Error(err))
		}
		metrics.ImageLookups.WithLabelValues("error").Inc()
		return nil
	case !found || strings.TrimSpace(url) == "":
		metrics.ImageLookups.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.ImageLookups.WithLabelValues("hit").Inc()
	return &url
}
