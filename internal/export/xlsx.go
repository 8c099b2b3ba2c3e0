// Package export выгружает отфильтрованные позиции в Excel.
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/views"
	"github.com/xuri/excelize/v2"
)

type View string

const (
	ViewTransferStatus View = "transfer_status"
	ViewHoldDetail     View = "hold_detail"
	ViewInProgressPlan View = "in_progress_plan"
	ViewCurrentBoM     View = "current_bom"
)

var Views = []View{ViewTransferStatus, ViewHoldDetail, ViewInProgressPlan, ViewCurrentBoM}

var ErrUnknownView = errors.New("export: unknown view")

func ParseView(s string) (View, error) {
	v := View(strings.TrimSpace(s))
	for _, known := range Views {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// DefaultTab вкладка, из которой берутся строки, если запрос её не задал.
func DefaultTab(view View) views.Tab {
	switch view {
	case ViewHoldDetail:
		return views.TabNotToTransfer
	case ViewInProgressPlan:
		return views.TabInProgress
	case ViewCurrentBoM:
		return views.TabCurrentBoM
	default:
		return views.TabAll
	}
}

type column struct {
	header string
	cell   func(bom.Item) string
}

var (
	colMaterial = column{"Component_Material", func(it bom.Item) string { return it.ComponentMaterial }}
	colDesc     = column{"Description_EN", func(it bom.Item) string { return it.DescriptionEN }}
	colKanban   = column{"Kanban_Flag", func(it bom.Item) string { return it.KanbanFlag }}
	colLatest   = column{"Latest_Component_Date", func(it bom.Item) string { return it.LatestComponentDate }}
	colPrice    = column{"Standard_Price", func(it bom.Item) string { return number(it.StandardPrice) }}
	colQty      = column{"Total_Qty", func(it bom.Item) string { return strconv.FormatInt(it.TotalQty, 10) }}
	colValue    = column{"Value", func(it bom.Item) string { return number(it.Value) }}
	colStatus   = column{"Transfer_Status", func(it bom.Item) string { return string(it.TransferStatus) }}
	colUpdated  = column{"Status_UpdatedAt", func(it bom.Item) string { return it.StatusUpdatedAt }}
	colExpected = column{"Expected_Completion", func(it bom.Item) string { return deref(it.ExpectedCompletion) }}
	colPlanned  = column{"Planned_Start", func(it bom.Item) string { return deref(it.PlannedStart) }}
	colReason   = column{"NotToTransferReason", func(it bom.Item) string { return it.NotToTransferReason }}
	colBrand    = column{"Brand", func(it bom.Item) string { return it.Brand }}
)

var layouts = map[View][]column{
	ViewTransferStatus: {colMaterial, colDesc, colKanban, colLatest, colPrice, colQty, colValue, colStatus, colUpdated},
	ViewHoldDetail:     {colMaterial, colDesc, colPrice, colQty, colValue, colReason, colBrand, colUpdated},
	ViewInProgressPlan: {colMaterial, colDesc, colPrice, colQty, colValue, colExpected, colUpdated},
	ViewCurrentBoM:     {colMaterial, colDesc, colKanban, colPrice, colQty, colValue, colStatus, colPlanned},
}

// Header фиксированный заголовок вида.
func Header(view View) ([]string, error) {
	cols, ok := layouts[view]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.header
	}
	return out, nil
}

// Rows строки вида: пустое поле => "", числа обычной десятичной записью.
func Rows(view View, items []bom.Item) ([][]string, error) {
	cols, ok := layouts[view]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	out := make([][]string, len(items))
	for i, it := range items {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = c.cell(it)
		}
		out[i] = row
	}
	return out, nil
}

// Write пишет xlsx: заголовок в первой строке, по строке на позицию.
func Write(w io.Writer, view View, items []bom.Item) error {
	header, err := Header(view)
	if err != nil {
		return err
	}
	rows, err := Rows(view, items)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, string(view)); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sheet = string(view)

	headerRow := toRow(header)
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell: %w", err)
		}
		excelRow := toRow(r)
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// FileName имя файла выгрузки.
func FileName(view View, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", view, now.Format("20060102_150405"))
}

func toRow(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
