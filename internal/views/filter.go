package views

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
)

// Search ищет подстроку без учёта регистра в номере материала или описании.
// Пустой запрос пропускает всё.
func Search(items []bom.Item, query string) []bom.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(items)
	}
	out := make([]bom.Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.ComponentMaterial), q) ||
			strings.Contains(strings.ToLower(it.DescriptionEN), q) {
			out = append(out, it)
		}
	}
	return out
}

func FilterStatus(items []bom.Item, statuses ...bom.TransferStatus) []bom.Item {
	out := make([]bom.Item, 0, len(items))
	for _, it := range items {
		if slices.Contains(statuses, it.TransferStatus) {
			out = append(out, it)
		}
	}
	return out
}

func FilterKanban(items []bom.Item, mode bom.KanbanMode) []bom.Item {
	out := make([]bom.Item, 0, len(items))
	for _, it := range items {
		if bom.IsKanban(it.KanbanFlag, mode) {
			out = append(out, it)
		}
	}
	return out
}

type SortKey string

const (
	SortNone                SortKey = ""
	SortValue               SortKey = "value"
	SortStandardPrice       SortKey = "standardPrice"
	SortTotalQty            SortKey = "totalQty"
	SortLatestComponentDate SortKey = "latestComponentDate"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

var (
	ErrUnknownSortKey   = errors.New("views: unknown sort key")
	ErrUnknownDirection = errors.New("views: unknown sort direction")
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case SortNone, SortValue, SortStandardPrice, SortTotalQty, SortLatestComponentDate:
		return k, nil
	}
	return SortNone, fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return Asc, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Sort устойчивая сортировка: равные ключи сохраняют входной порядок
// (повторная сортировка не переставляет строки в UI). Дата без разбора
// считается самой ранней.
func Sort(items []bom.Item, key SortKey, dir Direction) []bom.Item {
	out := slices.Clone(items)
	if key == SortNone {
		return out
	}
	keyOf := sortKeyFunc(key)
	slices.SortStableFunc(out, func(a, b bom.Item) int {
		c := cmp.Compare(keyOf(a), keyOf(b))
		if dir == Desc {
			return -c
		}
		return c
	})
	return out
}

func sortKeyFunc(key SortKey) func(bom.Item) float64 {
	switch key {
	case SortStandardPrice:
		return func(it bom.Item) float64 { return it.StandardPrice }
	case SortTotalQty:
		return func(it bom.Item) float64 { return float64(it.TotalQty) }
	case SortLatestComponentDate:
		return func(it bom.Item) float64 {
			t, ok := bom.ParseDate(it.LatestComponentDate)
			if !ok {
				return math.Inf(-1)
			}
			return float64(t.UnixMilli())
		}
	default:
		return func(it bom.Item) float64 { return it.Value }
	}
}
