// Package remote описывает контракт удалённого real-time хранилища:
// подписка на коллекцию целиком, частичная запись полей и поиск картинок.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
)

// Snapshot вся коллекция на момент изменения. nil == пустая коллекция.
type Snapshot map[string]bom.RawRecord

// Updates путь => значение; nil удаляет поле.
type Updates map[string]any

// Unsubscribe освобождает подписку и ждёт завершения доставки.
type Unsubscribe func()

// Feed доставляет полный снимок при каждом изменении. При сбое транспорта
// вызывается onError вместо onSnapshot; колбэки никогда не вызываются параллельно.
type Feed interface {
	Subscribe(ctx context.Context, onSnapshot func(Snapshot), onError func(error)) (Unsubscribe, error)
}

// Writer атомарная (в пределах одного вызова) многопутевая запись.
type Writer interface {
	WriteFields(ctx context.Context, updates Updates) error
}

type ImageResolver = bom.ImageResolver

// Adapter собирает три стороны хранилища вместе.
type Adapter struct {
	Feed   Feed
	Writer Writer
	Images ImageResolver
}

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMemory   Driver = "memory"
)

var (
	ErrInvalidPath = errors.New("remote: invalid path")
	ErrClosed      = errors.New("remote: store closed")
)

// Path собирает путь <collection>/<componentMaterial>/<field>.
func Path(collection, id, field string) (string, error) {
	for _, seg := range []string{collection, id, field} {
		if strings.TrimSpace(seg) == "" || strings.Contains(seg, "/") {
			return "", fmt.Errorf("%w: %q/%q/%q", ErrInvalidPath, collection, id, field)
		}
	}
	return collection + "/" + id + "/" + field, nil
}

// ParsePath разбирает путь, собранный Path.
func ParsePath(p string) (collection, id, field string, err error) {
	parts := strings.Split(p, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range parts {
		if strings.TrimSpace(seg) == "" {
			return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return parts[0], parts[1], parts[2], nil
}

// Patch изменения одного документа.
type Patch struct {
	Set    map[string]any
	Remove []string
}

// GroupByDocument раскладывает Updates по документам коллекции; все пути
// должны относиться к collection.
func GroupByDocument(collection string, updates Updates) (map[string]*Patch, error) {
	out := make(map[string]*Patch)
	for p, v := range updates {
		c, id, field, err := ParsePath(p)
		if err != nil {
			return nil, err
		}
		if c != collection {
			return nil, fmt.Errorf("%w: path %q outside collection %q", ErrInvalidPath, p, collection)
		}
		patch, ok := out[id]
		if !ok {
			patch = &Patch{Set: map[string]any{}}
			out[id] = patch
		}
		if v == nil {
			patch.Remove = append(patch.Remove, field)
			continue
		}
		patch.Set[field] = v
	}
	return out, nil
}

// Apply применяет патч к копии документа.
func (p *Patch) Apply(doc bom.RawRecord) bom.RawRecord {
	out := make(bom.RawRecord, len(doc)+len(p.Set))
	for k, v := range doc {
		out[k] = v
	}
	for k, v := range p.Set {
		out[k] = v
	}
	for _, k := range p.Remove {
		delete(out, k)
	}
	return out
}
