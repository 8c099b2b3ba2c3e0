package views

import (
	"sort"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/shopspring/decimal"
)

// DateField выбирает опорную дату позиции для помесячной разбивки.
type DateField func(bom.Item) (time.Time, bool)

// CompletionDate дата последней закупки, иначе время смены статуса.
func CompletionDate(it bom.Item) (time.Time, bool) {
	if t, ok := bom.ParseDate(it.LatestComponentDate); ok {
		return t, true
	}
	return bom.ParseDate(it.StatusUpdatedAt)
}

func ExpectedCompletionDate(it bom.Item) (time.Time, bool) {
	if it.ExpectedCompletion == nil {
		return time.Time{}, false
	}
	return bom.ParseDate(*it.ExpectedCompletion)
}

func PlannedStartDate(it bom.Item) (time.Time, bool) {
	if it.PlannedStart == nil {
		return time.Time{}, false
	}
	return bom.ParseDate(*it.PlannedStart)
}

type MonthBucket struct {
	Month        time.Time `json:"month"`
	Count        int       `json:"count"`
	TotalValue   float64   `json:"totalValue"`
	// DelayedCount позиции, чья собственная опорная дата строго раньше now.
	DelayedCount int       `json:"delayedCount"`
}

// MonthStart начало месяца в UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthlyBuckets группирует позиции по месяцу опорной даты. Позиции без
// разбираемой даты в разбивку не попадают. Просроченной считается позиция,
// чья опорная дата строго раньше now. Корзины идут по возрастанию месяца.
func MonthlyBuckets(items []bom.Item, field DateField, now time.Time) []MonthBucket {
	type acc struct {
		count   int
		value   decimal.Decimal
		delayed int
	}
	byMonth := make(map[time.Time]*acc)
	for _, it := range items {
		t, ok := field(it)
		if !ok {
			continue
		}
		m := MonthStart(t)
		a, exists := byMonth[m]
		if !exists {
			a = &acc{}
			byMonth[m] = a
		}
		a.count++
		a.value = a.value.Add(decimal.NewFromFloat(it.Value))
		if t.Before(now) {
			a.delayed++
		}
	}

	out := make([]MonthBucket, 0, len(byMonth))
	for m, a := range byMonth {
		out = append(out, MonthBucket{
			Month:        m,
			Count:        a.count,
			TotalValue:   a.value.InexactFloat64(),
			DelayedCount: a.delayed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// Decline remaining[i] = max(remaining[i-1] - events[i], 0), remaining[-1] = baseline.
// Отрицательные baseline и события считаются нулём.
func Decline(baseline int, events []int) []int {
	remaining := max(baseline, 0)
	out := make([]int, len(events))
	for i, e := range events {
		remaining = max(remaining-max(e, 0), 0)
		out[i] = remaining
	}
	return out
}

type TrajectoryPoint struct {
	Month     time.Time `json:"month"`
	Events    int       `json:"events"`
	Remaining int       `json:"remaining"`
}

// Trajectory точки убывания по корзинам. Без корзин возвращается одна
// точка текущего месяца без событий, чтобы график не был пустым.
func Trajectory(baseline int, buckets []MonthBucket, now time.Time) []TrajectoryPoint {
	if len(buckets) == 0 {
		return []TrajectoryPoint{{Month: MonthStart(now), Remaining: max(baseline, 0)}}
	}
	events := make([]int, len(buckets))
	for i, b := range buckets {
		events[i] = b.Count
	}
	remaining := Decline(baseline, events)
	out := make([]TrajectoryPoint, len(buckets))
	for i, b := range buckets {
		out[i] = TrajectoryPoint{Month: b.Month, Events: b.Count, Remaining: remaining[i]}
	}
	return out
}
