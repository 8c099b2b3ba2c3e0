package bot

import (
	"context"
	"strings"
	"time"

	"github.com/Spok95/bom-tracker/internal/dialog"
	"github.com/Spok95/bom-tracker/internal/domain/bom"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	editExpected = "exp"
	editPlanned  = "plan"
	editHold     = "hold"
)

const datePrompt = "Введите дату в формате ГГГГ-ММ-ДД или ГГГГ-ММ.\n«-» очистит поле."

// parseEditCallback "ed:<поле>:<компонент>".
func parseEditCallback(data string) (field, id string, ok bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != "ed" || parts[2] == "" {
		return "", "", false
	}
	switch parts[1] {
	case editExpected, editPlanned, editHold:
		return parts[1], parts[2], true
	}
	return "", "", false
}

// startEdit переводит чат администратора в режим ввода значения.
func (b *Bot) startEdit(chatID int64, field, id string) {
	payload := dialog.Payload{dialog.KeyID: id}
	var text string
	switch field {
	case editExpected:
		b.dialogs.Set(chatID, dialog.StateAwaitExpected, payload)
		text = id + ": плановое завершение.\n" + datePrompt
	case editPlanned:
		b.dialogs.Set(chatID, dialog.StateAwaitPlanned, payload)
		text = id + ": плановый старт.\n" + datePrompt
	case editHold:
		b.dialogs.Set(chatID, dialog.StateAwaitHoldReason, payload)
		text = id + ": причина, по которой позиция не передаётся («-» очистит):"
	default:
		return
	}
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(navKeyboard(true))
	b.send(m)
}

// handleText ответы в рамках открытого диалога.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	d := b.dialogs.Get(chatID)
	id, _ := dialog.GetString(d.Payload, dialog.KeyID)
	text := strings.TrimSpace(msg.Text)

	switch d.State {
	case dialog.StateAwaitExpected, dialog.StateAwaitPlanned:
		date, ok := parseDateInput(text)
		if !ok {
			b.send(tgbotapi.NewMessage(chatID, "Не похоже на дату. "+datePrompt))
			return
		}
		b.dialogs.Reset(chatID)
		if d.State == dialog.StateAwaitExpected {
			b.commit(ctx, chatID, id, "expected_completion", func(ctx context.Context) bool {
				return b.tracker.UpdateExpectedCompletion(ctx, id, date)
			})
			return
		}
		b.commit(ctx, chatID, id, "planned_start", func(ctx context.Context) bool {
			return b.tracker.UpdatePlannedStart(ctx, id, date)
		})

	case dialog.StateAwaitHoldReason:
		b.dialogs.Set(chatID, dialog.StateAwaitHoldBrand, dialog.Payload{
			dialog.KeyID:     id,
			dialog.KeyReason: clearable(text),
		})
		b.send(tgbotapi.NewMessage(chatID, "Бренд («-», если нет):"))

	case dialog.StateAwaitHoldBrand:
		reason, _ := dialog.GetString(d.Payload, dialog.KeyReason)
		brand := clearable(text)
		b.dialogs.Reset(chatID)
		b.commit(ctx, chatID, id, "hold", func(ctx context.Context) bool {
			return b.tracker.UpdateNotToTransferDetails(ctx, id, reason, brand)
		})

	default:
		b.send(tgbotapi.NewMessage(chatID, "Наберите /help"))
	}
}

func (b *Bot) commit(ctx context.Context, chatID int64, id, action string, fn func(ctx context.Context) bool) {
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if !fn(wctx) {
		b.send(tgbotapi.NewMessage(chatID, "Не удалось сохранить, попробуйте ещё раз."))
		return
	}
	b.log.Info("item updated from telegram", zap.String("action", action), zap.String("id", id))
	b.send(tgbotapi.NewMessage(chatID, "Сохранено: "+id+". Изменение появится со следующим снимком."))
}

// parseDateInput "-" или пустая строка очищают дату.
func parseDateInput(s string) (*string, bool) {
	if s == "" || s == "-" {
		return nil, true
	}
	if !bom.ValidUserDate(s) {
		return nil, false
	}
	return &s, true
}

func clearable(s string) string {
	if s == "-" {
		return ""
	}
	return s
}
