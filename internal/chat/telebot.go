package chat

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/helpers"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/keyboard"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/sender"
)

// CaptionLimit is the Telegram limit for media captions, in characters.
const CaptionLimit = 1024

// botAPI is the subset of *tele.Bot used here.
type botAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error)
}

// Telebot implements Messenger with a telebot bot.
type Telebot struct {
	bot        botAPI
	dispatcher *sender.Dispatcher
}

// NewTelebot wraps bot. Notify goes through dispatcher when it is not nil.
func NewTelebot(bot *tele.Bot, dispatcher *sender.Dispatcher) *Telebot {
	return &Telebot{bot: bot, dispatcher: dispatcher}
}

func newTelebot(bot botAPI, dispatcher *sender.Dispatcher) *Telebot {
	return &Telebot{bot: bot, dispatcher: dispatcher}
}

func markup(kb Keyboard) *tele.ReplyMarkup {
	if kb == nil {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, 0, len(kb))
	for _, row := range kb {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Text, Unique: b.Unique, Data: b.Data})
		}
		rows = append(rows, r)
	}
	return keyboard.InlineButtonsRows(rows...)
}

func sendOpts(kb Keyboard) []interface{} {
	if m := markup(kb); m != nil {
		return []interface{}{m}
	}
	return nil
}

func stored(ref MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func refOf(chatID int64, msg *tele.Message) MessageRef {
	if msg == nil {
		return MessageRef{ChatID: chatID}
	}
	return MessageRef{ChatID: chatID, MessageID: msg.ID}
}

// truncateCaption cuts caption to CaptionLimit characters.
func truncateCaption(caption string) string {
	if utf8.RuneCountInString(caption) <= CaptionLimit {
		return caption
	}
	runes := []rune(caption)
	return string(runes[:CaptionLimit-1]) + "…"
}

// isNotModified matches Telegram's answer to an edit that changes nothing.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

func (t *Telebot) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (MessageRef, error) {
	helpers.CountSent(ctx, kb != nil)
	msg, err := t.bot.Send(tele.ChatID(chatID), text, sendOpts(kb)...)
	if err != nil {
		return MessageRef{}, err
	}
	return refOf(chatID, msg), nil
}

func (t *Telebot) EditText(ctx context.Context, ref MessageRef, text string, kb Keyboard) error {
	if ref.IsZero() {
		return ErrNoTarget
	}
	_, err := t.bot.Edit(stored(ref), text, sendOpts(kb)...)
	if isNotModified(err) {
		return nil
	}
	if err == nil {
		helpers.CountSent(ctx, kb != nil)
	}
	return err
}

func (t *Telebot) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb Keyboard) (MessageRef, error) {
	helpers.CountSent(ctx, kb != nil)
	photo := &tele.Photo{File: tele.File{FileID: fileID}, Caption: truncateCaption(caption)}
	msg, err := t.bot.Send(tele.ChatID(chatID), photo, sendOpts(kb)...)
	if err != nil {
		return MessageRef{}, err
	}
	return refOf(chatID, msg), nil
}

func (t *Telebot) SendAlbum(ctx context.Context, chatID int64, fileIDs []string, caption string) error {
	if len(fileIDs) == 0 {
		return errors.New("chat: empty album")
	}
	album := make(tele.Album, 0, len(fileIDs))
	for i, id := range fileIDs {
		photo := &tele.Photo{File: tele.File{FileID: id}}
		if i == 0 {
			photo.Caption = truncateCaption(caption)
		}
		album = append(album, photo)
	}
	helpers.CountSent(ctx, false)
	_, err := t.bot.SendAlbum(tele.ChatID(chatID), album)
	return err
}

func (t *Telebot) DeleteMessage(_ context.Context, ref MessageRef) error {
	if ref.IsZero() {
		return ErrNoTarget
	}
	return t.bot.Delete(stored(ref))
}

func (t *Telebot) Notify(ctx context.Context, chatID int64, text string) error {
	run := func() error {
		_, err := t.bot.Send(tele.ChatID(chatID), text)
		return err
	}
	if t.dispatcher == nil {
		return run()
	}
	err := t.dispatcher.Enqueue(logger.Detach(ctx), "notify", "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.FromContext(ctx).LogAttrs(ctx, slog.LevelWarn, "queue.fallback",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

var _ Messenger = (*Telebot)(nil)
