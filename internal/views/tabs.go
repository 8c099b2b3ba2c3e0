package views

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
)

// Composition какие статусы считаются "Current BoM". В разных итерациях
// продукта состав менялся, поэтому это параметр, а не константа.
type Composition struct {
	Name     string
	Statuses []bom.TransferStatus
}

var (
	CurrentNotStarted = Composition{Name: "not_started", Statuses: []bom.TransferStatus{bom.StatusNotStart}}
	CurrentOpen       = Composition{Name: "open", Statuses: []bom.TransferStatus{bom.StatusNotStart, bom.StatusInProgress}}
	CurrentOpenHeld   = Composition{Name: "open_and_held", Statuses: []bom.TransferStatus{bom.StatusNotStart, bom.StatusInProgress, bom.StatusNotToTransfer}}
)

var ErrUnknownComposition = errors.New("views: unknown current bom composition")

func ParseComposition(name string) (Composition, error) {
	for _, c := range []Composition{CurrentNotStarted, CurrentOpen, CurrentOpenHeld} {
		if c.Name == strings.TrimSpace(name) {
			return c, nil
		}
	}
	return Composition{}, fmt.Errorf("%w: %q", ErrUnknownComposition, name)
}

func (c Composition) Includes(st bom.TransferStatus) bool {
	return slices.Contains(c.Statuses, st)
}

type Tab string

const (
	TabAll            Tab = "all"
	TabNotStart       Tab = "not_start"
	TabInProgress     Tab = "in_progress"
	TabFinished       Tab = "finished"
	TabTemporaryUsage Tab = "temporary_usage"
	TabNotToTransfer  Tab = "not_to_transfer"
	TabCurrentBoM     Tab = "current_bom"
	TabKanban         Tab = "kanban"
)

var ErrUnknownTab = errors.New("views: unknown tab")

func ParseTab(s string) (Tab, error) {
	t := Tab(strings.TrimSpace(s))
	if t == "" {
		return TabAll, nil
	}
	switch t {
	case TabAll, TabNotStart, TabInProgress, TabFinished, TabTemporaryUsage, TabNotToTransfer, TabCurrentBoM, TabKanban:
		return t, nil
	}
	return TabAll, fmt.Errorf("%w: %q", ErrUnknownTab, s)
}

// Options настройки вычисления, приходят из конфига.
type Options struct {
	Current Composition
	Kanban  bom.KanbanMode
}

func DefaultOptions() Options {
	return Options{Current: CurrentOpen, Kanban: bom.KanbanStrict}
}

type Query struct {
	Tab       Tab
	Search    string
	SortKey   SortKey
	Direction Direction
}

// Apply вкладка -> поиск -> сортировка.
func Apply(items []bom.Item, q Query, opts Options) []bom.Item {
	return Sort(Search(TabItems(items, q.Tab, opts), q.Search), q.SortKey, q.Direction)
}

func TabItems(items []bom.Item, tab Tab, opts Options) []bom.Item {
	if st, ok := bom.LookupStatus(string(tab)); ok && tab != TabAll {
		return FilterStatus(items, st)
	}
	switch tab {
	case TabCurrentBoM:
		return FilterStatus(items, opts.Current.Statuses...)
	case TabKanban:
		return FilterKanban(items, opts.Kanban)
	default:
		return slices.Clone(items)
	}
}

// Dashboard всё, что нужно главному экрану.
type Dashboard struct {
	GeneratedAt     time.Time         `json:"generatedAt"`
	Summary         Summary           `json:"summary"`
	CurrentBoMName  string            `json:"currentBomComposition"`
	CurrentBoM      Rollup            `json:"currentBom"`
	Completions     []MonthBucket     `json:"completions"`
	Forecast        []MonthBucket     `json:"forecast"`
	ForecastDecline []TrajectoryPoint `json:"forecastDecline"`
	Schedule        []MonthBucket     `json:"schedule"`
	ScheduleDecline []TrajectoryPoint `json:"scheduleDecline"`
}

func BuildDashboard(items []bom.Item, opts Options, now time.Time) Dashboard {
	p := PartitionByStatus(items)
	current := FilterStatus(items, opts.Current.Statuses...)
	inProgress := p[bom.StatusInProgress]

	forecast := MonthlyBuckets(inProgress, ExpectedCompletionDate, now)
	schedule := MonthlyBuckets(current, PlannedStartDate, now)

	return Dashboard{
		GeneratedAt:     now,
		Summary:         Summarize(items, opts.Kanban),
		CurrentBoMName:  opts.Current.Name,
		CurrentBoM:      RollupOf(current),
		Completions:     MonthlyBuckets(p[bom.StatusFinished], CompletionDate, now),
		Forecast:        forecast,
		ForecastDecline: Trajectory(len(inProgress), forecast, now),
		Schedule:        schedule,
		ScheduleDecline: Trajectory(len(current), schedule, now),
	}
}
