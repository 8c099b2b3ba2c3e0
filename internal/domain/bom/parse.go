package bom

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseRecord превращает непроверенную запись в Item. Функция тотальная:
// битые числа => 0, отсутствующий текст => "", неизвестный статус => NotStart.
// ImageURL не заполняется, это делает Normalizer.
func ParseRecord(id string, raw RawRecord) Item {
	it := Item{
		ComponentMaterial:   id,
		DescriptionEN:       text(raw, FieldDescriptionEN),
		KanbanFlag:          text(raw, FieldKanbanFlag),
		LatestComponentDate: text(raw, FieldLatestComponentDate),
		StandardPrice:       price(raw[FieldStandardPrice]),
		TotalQty:            qty(raw[FieldTotalQty]),
		TransferStatus:      ParseStatus(text(raw, FieldTransferStatus)),
		StatusUpdatedAt:     text(raw, FieldStatusUpdatedAt),
		ExpectedCompletion:  optText(raw, FieldExpectedCompletion),
		PlannedStart:        optText(raw, FieldPlannedStart),
		NotToTransferReason: text(raw, FieldNotToTransferReason),
		Brand:               text(raw, FieldBrand),
	}
	it.Value = ComputeValue(it.StandardPrice, it.TotalQty)
	return it
}

// ComputeValue единственное место, где считается Value.
func ComputeValue(price float64, qty int64) float64 {
	return price * float64(qty)
}

func text(raw RawRecord, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool, int, int64, int32:
		return fmt.Sprint(t)
	default:
		// объекты/массивы текстом не считаем
		return ""
	}
}

func optText(raw RawRecord, key string) *string {
	s := text(raw, key)
	if s == "" {
		return nil
	}
	return &s
}

// groupedNumber число с разделителями тысяч: 1,234 или 12,345.67.
var groupedNumber = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

// toNumber приводит значение с провода к float64; невалидное => 0.
func toNumber(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		return toNumber(t.String())
	case string:
		s := strings.TrimSpace(t)
		if strings.Contains(s, ",") {
			// "12,5" и "1,2,3" не числа
			if !groupedNumber.MatchString(s) {
				return 0
			}
			s = strings.ReplaceAll(s, ",", "")
		}
		if s == "" {
			return 0
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func price(v any) float64 { return toNumber(v) }

func qty(v any) int64 {
	f := math.Trunc(toNumber(v))
	if f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006-01",
}

// ParseDate разбирает ISO дату/время или месяц (YYYY-MM). Результат в UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ValidUserDate проверяет ввод оператора: YYYY-MM-DD или YYYY-MM.
func ValidUserDate(s string) bool {
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// Timestamp формат Status_UpdatedAt (как toISOString: UTC, миллисекунды, Z).
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
