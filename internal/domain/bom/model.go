package bom

import "strings"

type TransferStatus string

const (
	StatusNotStart       TransferStatus = "Not Start"
	StatusInProgress     TransferStatus = "In Progress"
	StatusFinished       TransferStatus = "Finished"
	StatusTemporaryUsage TransferStatus = "Temporary Usage"
	StatusNotToTransfer  TransferStatus = "Not to Transfer"
)

// Statuses перечисляет все статусы в порядке отображения вкладок.
var Statuses = []TransferStatus{
	StatusNotStart,
	StatusInProgress,
	StatusFinished,
	StatusTemporaryUsage,
	StatusNotToTransfer,
}

// statusAliases ключи без регистра, пробелов, '_' и '-'
var statusAliases = map[string]TransferStatus{
	"notstart":       StatusNotStart,
	"notstarted":     StatusNotStart,
	"inprogress":     StatusInProgress,
	"finished":       StatusFinished,
	"done":           StatusFinished,
	"temporaryusage": StatusTemporaryUsage,
	"temporary":      StatusTemporaryUsage,
	"nottotransfer":  StatusNotToTransfer,
	"hold":           StatusNotToTransfer,
}

// ParseStatus никогда не падает: пустое, неизвестное или мусорное значение => NotStart.
func ParseStatus(s string) TransferStatus {
	st, _ := LookupStatus(s)
	return st
}

// LookupStatus сообщает, известен ли статус.
func LookupStatus(s string) (TransferStatus, bool) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
	if st, ok := statusAliases[key]; ok {
		return st, true
	}
	return StatusNotStart, false
}

// Code короткий код статуса для URL и callback-данных.
func (s TransferStatus) Code() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusFinished:
		return "finished"
	case StatusTemporaryUsage:
		return "temporary_usage"
	case StatusNotToTransfer:
		return "not_to_transfer"
	default:
		return "not_start"
	}
}

// Item одна позиция BoM, ключ ComponentMaterial.
type Item struct {
	ComponentMaterial   string         `json:"componentMaterial"`
	DescriptionEN       string         `json:"descriptionEn"`
	KanbanFlag          string         `json:"kanbanFlag"`
	LatestComponentDate string         `json:"latestComponentDate"`
	StandardPrice       float64        `json:"standardPrice"`
	TotalQty            int64          `json:"totalQty"`
	Value               float64        `json:"value"` // StandardPrice * TotalQty, только вычисляется
	TransferStatus      TransferStatus `json:"transferStatus"`
	StatusUpdatedAt     string         `json:"statusUpdatedAt"`
	ImageURL            *string        `json:"imageUrl"`
	ExpectedCompletion  *string        `json:"expectedCompletion"`
	PlannedStart        *string        `json:"plannedStart"`
	NotToTransferReason string         `json:"notToTransferReason"`
	Brand               string         `json:"brand"`
}

// RawRecord запись коллекции как она пришла с провода.
type RawRecord map[string]any

// Имена полей на проводе.
const (
	FieldDescriptionEN       = "Description_EN"
	FieldKanbanFlag          = "Kanban_Flag"
	FieldLatestComponentDate = "Latest_Component_Date"
	FieldStandardPrice       = "Standard_Price"
	FieldTotalQty            = "Total_Qty"
	FieldTransferStatus      = "Transfer_Status"
	FieldStatusUpdatedAt     = "Status_UpdatedAt"
	FieldExpectedCompletion  = "Expected_Completion"
	FieldNotToTransferReason = "NotToTransferReason"
	FieldBrand               = "Brand"
	FieldPlannedStart        = "Planned_Start"
)

type KanbanMode string

const (
	KanbanStrict  KanbanMode = "strict"
	KanbanLenient KanbanMode = "lenient"
)

// IsKanban в strict режиме признаёт только "kanban"; lenient добавляет y/yes/1/true.
func IsKanban(flag string, mode KanbanMode) bool {
	f := strings.ToLower(strings.TrimSpace(flag))
	if f == "kanban" {
		return true
	}
	if mode != KanbanLenient {
		return false
	}
	switch f {
	case "y", "yes", "1", "true":
		return true
	}
	return false
}
