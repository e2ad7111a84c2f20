// Package chat is the outbound side of the bot: the operations the flow needs
// from the messaging transport, independent of telebot types.
package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
)

// Button is an inline button. Unique routes the press; Data is its payload.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Keyboard is a list of button rows. A nil keyboard sends no markup.
type Keyboard [][]Button

// Row builds a keyboard with all buttons on one row.
func Row(buttons ...Button) Keyboard {
	return Keyboard{buttons}
}

// Column builds a keyboard with one button per row.
func Column(buttons ...Button) Keyboard {
	kb := make(Keyboard, 0, len(buttons))
	for _, b := range buttons {
		kb = append(kb, []Button{b})
	}
	return kb
}

// MessageRef identifies a sent message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the ref points nowhere.
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 || r.MessageID == 0
}

// ErrNoTarget is returned when editing or deleting a zero MessageRef.
var ErrNoTarget = errors.New("chat: no target message")

// Messenger sends, edits and deletes messages.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, kb Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb Keyboard) (MessageRef, error)
	// SendAlbum sends the photos as one media group; the caption goes on the first one.
	SendAlbum(ctx context.Context, chatID int64, fileIDs []string, caption string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	// Notify queues a plain text message; delivery is retried in the background.
	Notify(ctx context.Context, chatID int64, text string) error
}

// EditOrSend edits ref in place and falls back to a fresh message when the edit fails.
func EditOrSend(ctx context.Context, m Messenger, ref MessageRef, chatID int64, text string, kb Keyboard) (MessageRef, error) {
	if !ref.IsZero() {
		err := m.EditText(ctx, ref, text, kb)
		if err == nil {
			return ref, nil
		}
		logger.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug, "chat.edit.fallback",
			slog.Int64("chat_id", ref.ChatID),
			slog.String("err", err.Error()),
		)
	}
	return m.SendText(ctx, chatID, text, kb)
}

// SendPhotos publishes fileIDs: a single photo is sent as a photo, more as an album.
func SendPhotos(ctx context.Context, m Messenger, chatID int64, fileIDs []string, caption string) error {
	switch len(fileIDs) {
	case 0:
		return errors.New("chat: no photos to send")
	case 1:
		_, err := m.SendPhoto(ctx, chatID, fileIDs[0], caption, nil)
		return err
	default:
		return m.SendAlbum(ctx, chatID, fileIDs, caption)
	}
}
