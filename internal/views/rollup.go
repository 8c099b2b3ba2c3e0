// Package views чистые функции над снимком BoM: разбиение по статусам,
// сводки, поиск, сортировка, помесячные корзины и траектории убывания.
// Ни одна функция не меняет входной срез.
package views

import (
	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/shopspring/decimal"
)

// Partition позиции по пяти статусам; каждая позиция ровно в одной корзине.
type Partition map[bom.TransferStatus][]bom.Item

func PartitionByStatus(items []bom.Item) Partition {
	p := make(Partition, len(bom.Statuses))
	for _, st := range bom.Statuses {
		p[st] = []bom.Item{}
	}
	for _, it := range items {
		st, ok := bom.LookupStatus(string(it.TransferStatus))
		if !ok {
			st = bom.StatusNotStart
		}
		p[st] = append(p[st], it)
	}
	return p
}

type Rollup struct {
	Count      int     `json:"count"`
	TotalValue float64 `json:"totalValue"`
	TotalQty   int64   `json:"totalQty"`
}

// rollupAcc копит стоимость в decimal, чтобы суммы по статусам
// в точности совпадали с общей суммой.
type rollupAcc struct {
	count int
	value decimal.Decimal
	qty   int64
}

func (a *rollupAcc) add(it bom.Item) {
	a.count++
	a.value = a.value.Add(decimal.NewFromFloat(it.Value))
	a.qty += it.TotalQty
}

func (a *rollupAcc) merge(b rollupAcc) {
	a.count += b.count
	a.value = a.value.Add(b.value)
	a.qty += b.qty
}

func (a rollupAcc) rollup() Rollup {
	return Rollup{Count: a.count, TotalValue: a.value.InexactFloat64(), TotalQty: a.qty}
}

func RollupOf(items []bom.Item) Rollup {
	var acc rollupAcc
	for _, it := range items {
		acc.add(it)
	}
	return acc.rollup()
}

type Summary struct {
	Overall        Rollup                        `json:"overall"`
	ByStatus       map[bom.TransferStatus]Rollup `json:"byStatus"`
	Kanban         Rollup                        `json:"kanban"`
	KanbanByStatus map[bom.TransferStatus]Rollup `json:"kanbanByStatus"`
}

// Summarize общая сводка; Overall собирается из сумм по статусам.
func Summarize(items []bom.Item, mode bom.KanbanMode) Summary {
	byStatus := make(map[bom.TransferStatus]*rollupAcc, len(bom.Statuses))
	kanban := make(map[bom.TransferStatus]*rollupAcc, len(bom.Statuses))
	for _, st := range bom.Statuses {
		byStatus[st] = &rollupAcc{}
		kanban[st] = &rollupAcc{}
	}

	for st, bucket := range PartitionByStatus(items) {
		for _, it := range bucket {
			byStatus[st].add(it)
			if bom.IsKanban(it.KanbanFlag, mode) {
				kanban[st].add(it)
			}
		}
	}

	var overall, kanbanAll rollupAcc
	s := Summary{
		ByStatus:       make(map[bom.TransferStatus]Rollup, len(bom.Statuses)),
		KanbanByStatus: make(map[bom.TransferStatus]Rollup, len(bom.Statuses)),
	}
	for _, st := range bom.Statuses {
		overall.merge(*byStatus[st])
		kanbanAll.merge(*kanban[st])
		s.ByStatus[st] = byStatus[st].rollup()
		s.KanbanByStatus[st] = kanban[st].rollup()
	}
	s.Overall = overall.rollup()
	s.Kanban = kanbanAll.rollup()
	return s
}
