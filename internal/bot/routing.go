package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/export"
	"github.com/Spok95/bom-tracker/internal/views"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const findLimit = 15

const helpText = "Команды:\n" +
	"/summary — сводка по статусам\n" +
	"/find <текст> — поиск по номеру и описанию\n" +
	"/status <номер> — карточка позиции, смена статуса и дат\n" +
	"/export [вид] — выгрузка в Excel\n" +
	"/help — помощь"

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		m := tgbotapi.NewMessage(chatID, helpText)
		if b.isAdmin(chatID) {
			m.ReplyMarkup = adminReplyKeyboard()
		}
		b.send(m)

	case "summary":
		st, wait, ok := b.ready()
		if !ok {
			b.send(tgbotapi.NewMessage(chatID, wait))
			return
		}
		d := views.BuildDashboard(st.Items, b.views, b.now())
		b.send(tgbotapi.NewMessage(chatID, formatSummary(d, st.SyncedAt.In(b.loc))))

	case "find":
		if args == "" {
			b.send(tgbotapi.NewMessage(chatID, "Укажите текст: /find CAP-100"))
			return
		}
		st, wait, ok := b.ready()
		if !ok {
			b.send(tgbotapi.NewMessage(chatID, wait))
			return
		}
		found := views.Search(st.Items, args)
		b.send(tgbotapi.NewMessage(chatID, formatFound(args, found, findLimit)))

	case "status":
		if args == "" {
			b.send(tgbotapi.NewMessage(chatID, "Укажите номер компонента: /status CAP-100"))
			return
		}
		b.showItem(chatID, args)

	case "export":
		if args == "" {
			m := tgbotapi.NewMessage(chatID, "Какую выгрузку сделать?")
			m.ReplyMarkup = exportKeyboard()
			b.send(m)
			return
		}
		view, err := export.ParseView(args)
		if err != nil {
			b.send(tgbotapi.NewMessage(chatID, "Неизвестный вид выгрузки. Доступны: "+viewList()))
			return
		}
		b.exportView(chatID, view)

	default:
		b.send(tgbotapi.NewMessage(chatID, "Не знаю такую команду. Наберите /help"))
	}
}

func (b *Bot) showItem(chatID int64, id string) {
	st, wait, ok := b.ready()
	if !ok {
		b.send(tgbotapi.NewMessage(chatID, wait))
		return
	}
	it, found := findItem(st.Items, id)
	if !found {
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Компонент %q не найден. Попробуйте /find", id)))
		return
	}
	m := tgbotapi.NewMessage(chatID, formatItem(it))
	if b.isAdmin(chatID) {
		if kb, ok := itemKeyboard(it.ComponentMaterial, it.TransferStatus); ok {
			m.ReplyMarkup = kb
		}
	}
	b.send(m)
}

func (b *Bot) exportView(chatID int64, view export.View) {
	st, wait, ok := b.ready()
	if !ok {
		b.send(tgbotapi.NewMessage(chatID, wait))
		return
	}
	items := views.Apply(st.Items, views.Query{Tab: export.DefaultTab(view)}, b.views)
	if err := b.sendExport(chatID, view, items); err != nil {
		b.log.Error("export failed", zap.String("view", string(view)), zap.Error(err))
		b.send(tgbotapi.NewMessage(chatID, "Не удалось сформировать файл."))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, "exp:"):
		_ = b.answerCallback(cb, "", false)
		view, err := export.ParseView(strings.TrimPrefix(data, "exp:"))
		if err != nil {
			return
		}
		b.exportView(chatID, view)

	case strings.HasPrefix(data, "st:"):
		if !b.isAdmin(chatID) {
			_ = b.answerCallback(cb, "Менять статусы можно только из чата администратора", true)
			return
		}
		status, id, ok := parseStatusCallback(data)
		if !ok {
			_ = b.answerCallback(cb, "Кнопка устарела", true)
			return
		}
		wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if !b.tracker.UpdateStatus(wctx, id, status) {
			_ = b.answerCallback(cb, "Не удалось сохранить, попробуйте ещё раз", true)
			return
		}
		_ = b.answerCallback(cb, "Сохранено", false)
		b.log.Info("status changed from telegram", zap.String("id", id), zap.String("status", string(status)))
		b.editTextAndClear(chatID, cb.Message.MessageID,
			fmt.Sprintf("%s\n\nНовый статус: %s (обновится со следующим снимком)", cb.Message.Text, status))

	case strings.HasPrefix(data, "ed:"):
		if !b.isAdmin(chatID) {
			_ = b.answerCallback(cb, "Редактировать можно только из чата администратора", true)
			return
		}
		field, id, ok := parseEditCallback(data)
		if !ok {
			_ = b.answerCallback(cb, "Кнопка устарела", true)
			return
		}
		_ = b.answerCallback(cb, "", false)
		b.startEdit(chatID, field, id)

	case data == "nav:cancel":
		_ = b.answerCallback(cb, "", false)
		b.dialogs.Reset(chatID)
		b.editTextAndClear(chatID, cb.Message.MessageID, cb.Message.Text)

	default:
		_ = b.answerCallback(cb, "", false)
	}
}

// parseStatusCallback "st:<индекс статуса>:<компонент>".
func parseStatusCallback(data string) (bom.TransferStatus, string, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != "st" || parts[2] == "" {
		return "", "", false
	}
	i, err := strconv.Atoi(parts[1])
	if err != nil || i < 0 || i >= len(bom.Statuses) {
		return "", "", false
	}
	return bom.Statuses[i], parts[2], true
}

func findItem(items []bom.Item, id string) (bom.Item, bool) {
	for _, it := range items {
		if strings.EqualFold(it.ComponentMaterial, id) {
			return it, true
		}
	}
	return bom.Item{}, false
}

func viewList() string {
	names := make([]string, len(export.Views))
	for i, v := range export.Views {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}
