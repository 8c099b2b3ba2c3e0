package bot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Spok95/bom-tracker/internal/collection"
	"github.com/Spok95/bom-tracker/internal/dialog"
	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/export"
	"github.com/Spok95/bom-tracker/internal/views"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// API часть *tgbotapi.BotAPI, которой пользуется бот.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Tracker живая коллекция позиций.
type Tracker interface {
	State() collection.State
	Watch() (<-chan collection.State, func())
	UpdateStatus(ctx context.Context, id string, status bom.TransferStatus) bool
	UpdateExpectedCompletion(ctx context.Context, id string, date *string) bool
	UpdatePlannedStart(ctx context.Context, id string, date *string) bool
	UpdateNotToTransferDetails(ctx context.Context, id, reason, brand string) bool
}

// dialogTTL сколько ждём ответа администратора.
const dialogTTL = 15 * time.Minute

type Bot struct {
	api       API
	log       *zap.Logger
	tracker   Tracker
	adminChat int64
	dialogs   *dialog.Repo
	views     views.Options
	loc       *time.Location
	now       func() time.Time
}

func New(api API, log *zap.Logger, tracker Tracker, adminChatID int64, opts views.Options, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		api: api, log: log.With(zap.String("component", "bot")), tracker: tracker,
		adminChat: adminChatID, dialogs: dialog.NewRepo(64, dialogTTL), views: opts, loc: loc, now: time.Now,
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)

	go b.watchState(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil {
				b.onMessage(ctx, upd)
			} else if upd.CallbackQuery != nil {
				b.onCallback(ctx, upd)
			}
		}
	}
}

func (b *Bot) onMessage(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg.IsCommand() {
		b.dialogs.Reset(msg.Chat.ID)
		b.handleCommand(ctx, msg)
		return
	}
	b.handleText(ctx, msg)
}

func (b *Bot) onCallback(ctx context.Context, upd tgbotapi.Update) {
	b.handleCallback(ctx, upd.CallbackQuery)
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", zap.Error(err))
	}
}

func (b *Bot) isAdmin(chatID int64) bool {
	return b.adminChat != 0 && chatID == b.adminChat
}

// ready текст-заглушка, если данных пока нет.
func (b *Bot) ready() (collection.State, string, bool) {
	st := b.tracker.State()
	switch st.Phase {
	case collection.PhaseReady:
		return st, "", true
	case collection.PhaseFailed:
		return st, "Нет связи с хранилищем: " + errText(st.Err) + "\nПопробуйте позже.", false
	default:
		return st, "Данные ещё загружаются, попробуйте через минуту.", false
	}
}

func (b *Bot) sendExport(chatID int64, view export.View, items []bom.Item) error {
	var buf bytes.Buffer
	if err := export.Write(&buf, view, items); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.FileName(view, b.now().In(b.loc)),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Выгрузка «%s»: %d поз.", view, len(items))
	b.send(doc)
	return nil
}

// watchState сообщает админу о потере и восстановлении связи с хранилищем.
func (b *Bot) watchState(ctx context.Context) {
	if b.adminChat == 0 {
		return
	}
	ch, cancel := b.tracker.Watch()
	defer cancel()

	prev := collection.PhaseLoading
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			if text := phaseNotice(prev, st); text != "" {
				b.send(tgbotapi.NewMessage(b.adminChat, text))
			}
			prev = st.Phase
		}
	}
}

func phaseNotice(prev collection.Phase, st collection.State) string {
	switch {
	case st.Phase == collection.PhaseFailed && prev != collection.PhaseFailed:
		return "⚠️ Синхронизация остановлена: " + errText(st.Err)
	case st.Phase == collection.PhaseReady && prev == collection.PhaseFailed:
		return fmt.Sprintf("✅ Синхронизация восстановлена, позиций: %d", len(st.Items))
	}
	return ""
}

func errText(err error) string {
	if err == nil {
		return "неизвестная ошибка"
	}
	return err.Error()
}
