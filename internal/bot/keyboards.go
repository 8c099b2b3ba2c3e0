package bot

import (
	"fmt"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/export"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// callbackDataLimit ограничение Telegram на callback_data.
const callbackDataLimit = 64

func navKeyboard(cancel bool) []tgbotapi.InlineKeyboardButton {
	row := []tgbotapi.InlineKeyboardButton{}
	if cancel {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✖️ Отменить", "nav:cancel"))
	}
	return row
}

// itemKeyboard по кнопке на каждый статус, кроме текущего, и строка
// редактирования полей. ok=false, если номер компонента не помещается в callback_data.
func itemKeyboard(id string, current bom.TransferStatus) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, st := range bom.Statuses {
		if st == current {
			continue
		}
		data := fmt.Sprintf("st:%d:%s", i, id)
		if len(data) > callbackDataLimit {
			return tgbotapi.InlineKeyboardMarkup{}, false
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(string(st), data)))
	}
	// "ed:plan:" самый длинный префикс
	if len("ed:"+editPlanned+":"+id) > callbackDataLimit {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📅 Завершение", "ed:"+editExpected+":"+id),
		tgbotapi.NewInlineKeyboardButtonData("🗓 Старт", "ed:"+editPlanned+":"+id),
		tgbotapi.NewInlineKeyboardButtonData("⛔ Причина", "ed:"+editHold+":"+id),
	))
	rows = append(rows, navKeyboard(true))
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func exportKeyboard() tgbotapi.InlineKeyboardMarkup {
	titles := map[export.View]string{
		export.ViewTransferStatus: "Статусы передачи",
		export.ViewHoldDetail:     "Не передаются",
		export.ViewInProgressPlan: "План в работе",
		export.ViewCurrentBoM:     "Текущий BoM",
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, v := range export.Views {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(titles[v], "exp:"+string(v)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// adminReplyKeyboard Нижняя панель (ReplyKeyboard) для админа
func adminReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton("/summary"), tgbotapi.NewKeyboardButton("/export")},
			{tgbotapi.NewKeyboardButton("/help")},
		},
	}
}
