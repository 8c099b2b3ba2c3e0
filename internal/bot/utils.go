package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/views"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

/*** HELPERS ***/

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string, alert bool) error {
	resp := tgbotapi.NewCallback(cb.ID, text)
	resp.ShowAlert = alert
	_, err := b.api.Request(resp)
	return err
}

func (b *Bot) editTextAndClear(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID, text,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)
	b.send(edit)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatSummary(d views.Dashboard, syncedAt time.Time) string {
	var sb strings.Builder
	s := d.Summary
	fmt.Fprintf(&sb, "Всего позиций: %d, сумма %s\n", s.Overall.Count, money(s.Overall.TotalValue))
	for _, st := range bom.Statuses {
		r := s.ByStatus[st]
		fmt.Fprintf(&sb, "• %s: %d (%s)\n", st, r.Count, money(r.TotalValue))
	}
	fmt.Fprintf(&sb, "Kanban: %d (%s)\n", s.Kanban.Count, money(s.Kanban.TotalValue))
	fmt.Fprintf(&sb, "Текущий BoM (%s): %d (%s)\n", d.CurrentBoMName, d.CurrentBoM.Count, money(d.CurrentBoM.TotalValue))

	delayed := 0
	for _, m := range d.Forecast {
		delayed += m.DelayedCount
	}
	if delayed > 0 {
		fmt.Fprintf(&sb, "Просрочено по плану завершения: %d\n", delayed)
	}
	if !syncedAt.IsZero() {
		fmt.Fprintf(&sb, "Обновлено: %s", syncedAt.Format("02.01.2006 15:04"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatFound(query string, items []bom.Item, limit int) string {
	if len(items) == 0 {
		return fmt.Sprintf("По запросу %q ничего не найдено.", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Найдено: %d\n", len(items))
	for i, it := range items {
		if i == limit {
			fmt.Fprintf(&sb, "…и ещё %d", len(items)-limit)
			break
		}
		fmt.Fprintf(&sb, "%s · %s · %s\n", it.ComponentMaterial, it.TransferStatus, money(it.Value))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatItem(it bom.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", it.ComponentMaterial)
	if it.DescriptionEN != "" {
		fmt.Fprintf(&sb, "%s\n", it.DescriptionEN)
	}
	fmt.Fprintf(&sb, "Статус: %s\n", it.TransferStatus)
	fmt.Fprintf(&sb, "Цена: %s × %d = %s\n", money(it.StandardPrice), it.TotalQty, money(it.Value))
	if it.KanbanFlag != "" {
		fmt.Fprintf(&sb, "Kanban: %s\n", it.KanbanFlag)
	}
	if it.ExpectedCompletion != nil {
		fmt.Fprintf(&sb, "Плановое завершение: %s\n", *it.ExpectedCompletion)
	}
	if it.PlannedStart != nil {
		fmt.Fprintf(&sb, "Плановый старт: %s\n", *it.PlannedStart)
	}
	if it.TransferStatus == bom.StatusNotToTransfer {
		fmt.Fprintf(&sb, "Причина: %s\nБренд: %s\n", dash(it.NotToTransferReason), dash(it.Brand))
	}
	if it.StatusUpdatedAt != "" {
		fmt.Fprintf(&sb, "Статус изменён: %s\n", it.StatusUpdatedAt)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
