// Package gateway adapts Telegram updates to dialogue events and replies.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ykravets/friendbook/bot/dialog"
	"github.com/ykravets/friendbook/pkg/telegram"
)

const (
	menuPrompt     = "Pick an action:"
	msgFetchFailed = "Couldn't download that file. Please send it again."
)

type Gateway struct {
	tg      *telegram.Client
	machine *dialog.Machine
}

func New(tg *telegram.Client) (*Gateway, error) {
	if tg == nil {
		return nil, errors.New("telegram client is required")
	}
	return &Gateway{tg: tg}, nil
}

// Attach wires the dialogue machine. The gateway is also the machine's
// replier, so construction happens in two steps.
func (g *Gateway) Attach(machine *dialog.Machine) {
	g.machine = machine
}

// Send implements dialog.Replier.
func (g *Gateway) Send(ctx context.Context, chatID int64, text string) error {
	_, err := g.tg.SendMessage(ctx, chatID, text, mainMenuKeyboard())
	return err
}

// Run long-polls for updates until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	if g.machine == nil {
		return errors.New("dialog machine is not attached")
	}

	var offset int64

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := g.tg.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("getUpdates failed")
			time.Sleep(3 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			g.handleUpdate(ctx, u)
		}
	}
}

func (g *Gateway) handleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		g.handleCallback(ctx, *u.CallbackQuery)
	case u.Message != nil:
		g.handleMessage(ctx, *u.Message)
	}
}

func (g *Gateway) handleCallback(ctx context.Context, cb telegram.CallbackQuery) {
	if err := g.tg.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		log.Warn().Err(err).Str("callback_id", cb.ID).Msg("answerCallbackQuery failed")
	}
	if cb.Message == nil {
		return
	}

	// Rewrite the pressed menu message in place, so the chat shows the
	// chosen action instead of a stale keyboard.
	if label := menuLabel(cb.Data); label != "" {
		if err := g.tg.EditMessageText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, label, nil); err != nil {
			log.Warn().Err(err).Int64("chat_id", cb.Message.Chat.ID).Msg("menu edit failed")
		}
	}

	ev := dialog.Menu{ChatID: cb.Message.Chat.ID, Tag: cb.Data}
	if err := g.machine.Handle(ctx, ev); err != nil {
		log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("menu turn failed")
	}
}

func (g *Gateway) handleMessage(ctx context.Context, msg telegram.Message) {
	chatID := msg.Chat.ID

	var ev dialog.Event
	switch {
	case strings.TrimSpace(msg.Text) == "/start":
		if _, err := g.tg.SendMessage(ctx, chatID, menuPrompt, mainMenuKeyboard()); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("menu send failed")
		}
		return

	case len(msg.Photo) > 0:
		att, ok := g.downloadPhoto(ctx, msg)
		if !ok {
			return
		}
		ev = att

	case msg.Document != nil:
		att, ok := g.downloadDocument(ctx, msg)
		if !ok {
			return
		}
		ev = att

	default:
		ev = dialog.Text{ChatID: chatID, Content: msg.Text}
	}

	if err := g.machine.Handle(ctx, ev); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("turn failed")
	}
}

func (g *Gateway) downloadPhoto(ctx context.Context, msg telegram.Message) (dialog.Attachment, bool) {
	// Telegram sends several sizes; take the largest.
	best := msg.Photo[len(msg.Photo)-1]

	data, ok := g.fetchFile(ctx, msg.Chat.ID, best.FileID)
	if !ok {
		return dialog.Attachment{}, false
	}
	return dialog.Attachment{
		ChatID:      msg.Chat.ID,
		Filename:    best.FileUniqueID + ".jpg",
		ContentType: "image/jpeg",
		Data:        data,
		IsImage:     true,
	}, true
}

func (g *Gateway) downloadDocument(ctx context.Context, msg telegram.Message) (dialog.Attachment, bool) {
	doc := msg.Document
	isImage := strings.HasPrefix(doc.MimeType, "image/")

	att := dialog.Attachment{
		ChatID:      msg.Chat.ID,
		Filename:    doc.FileName,
		ContentType: doc.MimeType,
		IsImage:     isImage,
	}
	if att.Filename == "" {
		att.Filename = doc.FileUniqueID
	}

	// Non-image documents only re-prompt, no need to download the bytes.
	if !isImage {
		return att, true
	}

	data, ok := g.fetchFile(ctx, msg.Chat.ID, doc.FileID)
	if !ok {
		return dialog.Attachment{}, false
	}
	att.Data = data
	return att, true
}

// fetchFile downloads the bytes behind a file id. A failed fetch still
// answers the user; the turn is dropped but never silently.
func (g *Gateway) fetchFile(ctx context.Context, chatID int64, fileID string) ([]byte, bool) {
	file, err := g.tg.GetFile(ctx, fileID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("getFile failed")
		g.replyFetchFailed(ctx, chatID)
		return nil, false
	}
	data, err := g.tg.DownloadFile(ctx, file.FilePath)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("file download failed")
		g.replyFetchFailed(ctx, chatID)
		return nil, false
	}
	return data, true
}

func (g *Gateway) replyFetchFailed(ctx context.Context, chatID int64) {
	if err := g.Send(ctx, chatID, msgFetchFailed); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("fetch-failure reply send failed")
	}
}

func menuLabel(tag string) string {
	for _, row := range mainMenuKeyboard().InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData == tag {
				return btn.Text
			}
		}
	}
	return ""
}

func mainMenuKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Add a new friend", CallbackData: dialog.MenuCreate}},
			{{Text: "Show all friends", CallbackData: dialog.MenuList}},
			{{Text: "Find a friend by ID", CallbackData: dialog.MenuLookup}},
			{{Text: "Delete a friend by ID", CallbackData: dialog.MenuDelete}},
			{{Text: "Ask about a profession", CallbackData: dialog.MenuAsk}},
		},
	}
}
