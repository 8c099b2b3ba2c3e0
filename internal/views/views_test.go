package views

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, st bom.TransferStatus, price float64, qty int64) bom.Item {
	return bom.Item{
		ComponentMaterial: id,
		TransferStatus:    st,
		StandardPrice:     price,
		TotalQty:          qty,
		Value:             bom.ComputeValue(price, qty),
	}
}

func strp(s string) *string { return &s }

func sample() []bom.Item {
	a := item("CAP-100", bom.StatusNotStart, 0.1, 3)
	a.DescriptionEN = "Ceramic capacitor"
	a.KanbanFlag = "Kanban"
	b := item("RES-200", bom.StatusInProgress, 1.25, 8)
	b.DescriptionEN = "Resistor 10k"
	c := item("IC-7", bom.StatusFinished, 12.5, 4)
	c.KanbanFlag = "yes"
	d := item("PCB-1", bom.StatusNotToTransfer, 33.3, 1)
	e := item("FAN-9", bom.StatusTemporaryUsage, 7, 2)
	f := item("SCR-5", bom.StatusNotStart, 0.01, 1000)
	return []bom.Item{a, b, c, d, e, f}
}

func TestPartition_StrictCover(t *testing.T) {
	items := sample()
	items = append(items, bom.Item{ComponentMaterial: "ODD", TransferStatus: "weird"})
	p := PartitionByStatus(items)

	require.Len(t, p, len(bom.Statuses))
	total := 0
	seen := map[string]bom.TransferStatus{}
	for st, bucket := range p {
		total += len(bucket)
		for _, it := range bucket {
			prev, dup := seen[it.ComponentMaterial]
			assert.False(t, dup, "%s in %s and %s", it.ComponentMaterial, prev, st)
			seen[it.ComponentMaterial] = st
		}
	}
	assert.Equal(t, len(items), total)
	assert.Equal(t, bom.StatusNotStart, seen["ODD"])
}

func TestSummarize_StatusRollupsAddUp(t *testing.T) {
	items := sample()
	s := Summarize(items, bom.KanbanStrict)

	count, qty := 0, int64(0)
	value := 0.0
	for _, st := range bom.Statuses {
		r := s.ByStatus[st]
		count += r.Count
		qty += r.TotalQty
		value += r.TotalValue
	}
	assert.Equal(t, len(items), s.Overall.Count)
	assert.Equal(t, s.Overall.Count, count)
	assert.Equal(t, s.Overall.TotalQty, qty)
	assert.InDelta(t, s.Overall.TotalValue, value, 1e-9)
	assert.Equal(t, 2, s.ByStatus[bom.StatusNotStart].Count)
	assert.InDelta(t, 10.3, s.ByStatus[bom.StatusNotStart].TotalValue, 1e-12)
}

func TestSummarize_Kanban(t *testing.T) {
	strict := Summarize(sample(), bom.KanbanStrict)
	assert.Equal(t, 1, strict.Kanban.Count)
	assert.Equal(t, 1, strict.KanbanByStatus[bom.StatusNotStart].Count)

	lenient := Summarize(sample(), bom.KanbanLenient)
	assert.Equal(t, 2, lenient.Kanban.Count)
	assert.Equal(t, 50.0, lenient.KanbanByStatus[bom.StatusFinished].TotalValue)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, bom.KanbanStrict)
	assert.Zero(t, s.Overall)
	assert.Len(t, s.ByStatus, 5)
}

func TestSearch(t *testing.T) {
	items := []bom.Item{{ComponentMaterial: "CAP-100"}, {ComponentMaterial: "RES-200"}}
	got := Search(items, "cap")
	require.Len(t, got, 1)
	assert.Equal(t, "CAP-100", got[0].ComponentMaterial)

	assert.Len(t, Search(items, ""), 2)
	assert.Len(t, Search(items, "   "), 2)
	assert.Len(t, Search(sample(), "RESISTOR"), 1, "matches description")
	assert.Empty(t, Search(items, "zzz"))
}

func TestSort_ByValue(t *testing.T) {
	got := Sort(sample(), SortValue, Desc)
	assert.Equal(t, "IC-7", got[0].ComponentMaterial)
	assert.Equal(t, "CAP-100", got[len(got)-1].ComponentMaterial)

	asc := Sort(sample(), SortTotalQty, Asc)
	assert.Equal(t, "SCR-5", asc[len(asc)-1].ComponentMaterial)
}

func TestSort_StableForConstantKey(t *testing.T) {
	items := make([]bom.Item, 50)
	for i := range items {
		items[i] = item(fmt.Sprintf("P-%02d", i), bom.StatusNotStart, 5, 2)
	}
	for _, key := range []SortKey{SortValue, SortStandardPrice, SortTotalQty, SortLatestComponentDate} {
		for _, dir := range []Direction{Asc, Desc} {
			got := Sort(items, key, dir)
			for i := range got {
				require.Equal(t, items[i].ComponentMaterial, got[i].ComponentMaterial, "%s %s", key, dir)
			}
		}
	}
}

func TestSort_StableTies(t *testing.T) {
	items := []bom.Item{
		item("A", bom.StatusNotStart, 2, 1),
		item("B", bom.StatusNotStart, 1, 1),
		item("C", bom.StatusNotStart, 2, 1),
		item("D", bom.StatusNotStart, 1, 1),
	}
	got := Sort(items, SortValue, Desc)
	ids := []string{got[0].ComponentMaterial, got[1].ComponentMaterial, got[2].ComponentMaterial, got[3].ComponentMaterial}
	assert.Equal(t, []string{"A", "C", "B", "D"}, ids)

	again := Sort(got, SortValue, Desc)
	assert.Equal(t, got, again)
}

func TestSort_ByDate(t *testing.T) {
	a := bom.Item{ComponentMaterial: "A", LatestComponentDate: "2025-06-01"}
	b := bom.Item{ComponentMaterial: "B", LatestComponentDate: ""}
	c := bom.Item{ComponentMaterial: "C", LatestComponentDate: "2024-01-15"}
	got := Sort([]bom.Item{a, b, c}, SortLatestComponentDate, Asc)
	assert.Equal(t, "B", got[0].ComponentMaterial)
	assert.Equal(t, "C", got[1].ComponentMaterial)
	assert.Equal(t, "A", got[2].ComponentMaterial)
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	items := sample()
	first := items[0].ComponentMaterial
	_ = Sort(items, SortValue, Desc)
	assert.Equal(t, first, items[0].ComponentMaterial)
}

func TestParseSortKeyAndDirection(t *testing.T) {
	k, err := ParseSortKey("latestComponentDate")
	require.NoError(t, err)
	assert.Equal(t, SortLatestComponentDate, k)
	_, err = ParseSortKey("name")
	assert.ErrorIs(t, err, ErrUnknownSortKey)

	d, err := ParseDirection("DESC")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)
	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)
	_, err = ParseDirection("up")
	assert.ErrorIs(t, err, ErrUnknownDirection)
}

func TestMonthlyBuckets(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	a := item("A", bom.StatusInProgress, 10, 1)
	a.ExpectedCompletion = strp("2026-09-30")
	b := item("B", bom.StatusInProgress, 5, 2)
	b.ExpectedCompletion = strp("2026-11-02")
	c := item("C", bom.StatusInProgress, 1, 1)
	c.ExpectedCompletion = strp("2026-10-01")
	d := item("D", bom.StatusInProgress, 1, 1)
	d.ExpectedCompletion = strp("2026-10-20")
	e := item("E", bom.StatusInProgress, 1, 1)
	e.ExpectedCompletion = strp("someday")
	f := item("F", bom.StatusInProgress, 1, 1)

	got := MonthlyBuckets([]bom.Item{b, a, d, c, e, f}, ExpectedCompletionDate, now)
	require.Len(t, got, 3)

	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), got[0].Month)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, 1, got[0].DelayedCount)

	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), got[1].Month)
	assert.Equal(t, 2, got[1].Count)
	assert.Equal(t, 1, got[1].DelayedCount, "only the item dated before now")
	assert.Equal(t, 2.0, got[1].TotalValue)

	assert.Equal(t, 0, got[2].DelayedCount)
	assert.Equal(t, 10.0, got[2].TotalValue)
}

func TestCompletionDateFallsBackToStatusUpdatedAt(t *testing.T) {
	it := bom.Item{StatusUpdatedAt: "2026-04-03T10:00:00.000Z"}
	d, ok := CompletionDate(it)
	require.True(t, ok)
	assert.Equal(t, time.April, d.Month())

	it.LatestComponentDate = "2025-12-24"
	d, ok = CompletionDate(it)
	require.True(t, ok)
	assert.Equal(t, 2025, d.Year())

	_, ok = CompletionDate(bom.Item{})
	assert.False(t, ok)
}

func TestDecline_Example(t *testing.T) {
	assert.Equal(t, []int{7, 3, 0}, Decline(10, []int{3, 4, 10}))
}

func TestDecline_MonotonicAndNonNegative(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for n := 0; n < 500; n++ {
		baseline := r.Intn(100)
		events := make([]int, r.Intn(12))
		for i := range events {
			events[i] = r.Intn(30)
		}
		got := Decline(baseline, events)
		require.Len(t, got, len(events))
		prev := baseline
		for _, v := range got {
			require.GreaterOrEqual(t, v, 0)
			require.LessOrEqual(t, v, prev)
			prev = v
		}
	}
}

func TestDecline_ClampsNegativeInput(t *testing.T) {
	assert.Equal(t, []int{0, 0}, Decline(-5, []int{1, -3}))
	assert.Equal(t, []int{4}, Decline(4, []int{-2}))
}

func TestTrajectory_SyntheticPoint(t *testing.T) {
	now := time.Date(2026, 10, 15, 13, 0, 0, 0, time.UTC)
	got := Trajectory(12, nil, now)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), got[0].Month)
	assert.Equal(t, 0, got[0].Events)
	assert.Equal(t, 12, got[0].Remaining)
}

func TestTrajectory_FromBuckets(t *testing.T) {
	buckets := []MonthBucket{
		{Month: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), Count: 3},
		{Month: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), Count: 4},
		{Month: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), Count: 10},
	}
	got := Trajectory(10, buckets, time.Now())
	require.Len(t, got, 3)
	assert.Equal(t, 7, got[0].Remaining)
	assert.Equal(t, 3, got[1].Remaining)
	assert.Equal(t, 0, got[2].Remaining)
	assert.Equal(t, 10, got[2].Events)
}

func TestComposition(t *testing.T) {
	c, err := ParseComposition("open_and_held")
	require.NoError(t, err)
	assert.True(t, c.Includes(bom.StatusNotToTransfer))
	assert.False(t, c.Includes(bom.StatusFinished))

	_, err = ParseComposition("everything")
	assert.ErrorIs(t, err, ErrUnknownComposition)

	items := sample()
	for _, comp := range []Composition{CurrentNotStarted, CurrentOpen, CurrentOpenHeld} {
		got := TabItems(items, TabCurrentBoM, Options{Current: comp})
		for _, it := range got {
			assert.True(t, comp.Includes(it.TransferStatus))
		}
	}
	assert.Len(t, TabItems(items, TabCurrentBoM, Options{Current: CurrentNotStarted}), 2)
	assert.Len(t, TabItems(items, TabCurrentBoM, Options{Current: CurrentOpen}), 3)
	assert.Len(t, TabItems(items, TabCurrentBoM, Options{Current: CurrentOpenHeld}), 4)
}

func TestApply(t *testing.T) {
	opts := DefaultOptions()
	got := Apply(sample(), Query{Tab: TabNotStart, SortKey: SortValue, Direction: Desc}, opts)
	require.Len(t, got, 2)
	assert.Equal(t, "SCR-5", got[0].ComponentMaterial)

	got = Apply(sample(), Query{Tab: TabAll, Search: "res"}, opts)
	require.Len(t, got, 1)

	got = Apply(sample(), Query{Tab: TabKanban}, Options{Kanban: bom.KanbanLenient})
	assert.Len(t, got, 2)
}

func TestParseTab(t *testing.T) {
	tab, err := ParseTab("")
	require.NoError(t, err)
	assert.Equal(t, TabAll, tab)
	_, err = ParseTab("archived")
	assert.ErrorIs(t, err, ErrUnknownTab)
}

func TestBuildDashboard(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	items := sample()
	items[1].ExpectedCompletion = strp("2026-11-10")
	items[2].LatestComponentDate = "2026-08-01"
	items[0].PlannedStart = strp("2026-12")

	d := BuildDashboard(items, DefaultOptions(), now)
	assert.Equal(t, "open", d.CurrentBoMName)
	assert.Equal(t, 3, d.CurrentBoM.Count)
	require.Len(t, d.Completions, 1)
	require.Len(t, d.Forecast, 1)
	require.Len(t, d.ForecastDecline, 1)
	assert.Equal(t, 0, d.ForecastDecline[0].Remaining)
	require.Len(t, d.ScheduleDecline, 1)
	assert.Equal(t, 2, d.ScheduleDecline[0].Remaining)
	assert.Equal(t, len(items), d.Summary.Overall.Count)
}
