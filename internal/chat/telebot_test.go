package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"
)

type fakeBot struct {
	sent    []interface{}
	edits   int
	deleted []tele.StoredMessage
	albums  []tele.Album
	editErr error
	nextID  int
}

func (f *fakeBot) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.sent = append(f.sent, what)
	f.nextID++
	return &tele.Message{ID: f.nextID}, nil
}

func (f *fakeBot) Edit(_ tele.Editable, _ interface{}, _ ...interface{}) (*tele.Message, error) {
	f.edits++
	return nil, f.editErr
}

func (f *fakeBot) Delete(msg tele.Editable) error {
	f.deleted = append(f.deleted, msg.(tele.StoredMessage))
	return nil
}

func (f *fakeBot) SendAlbum(_ tele.Recipient, a tele.Album, _ ...interface{}) ([]tele.Message, error) {
	f.albums = append(f.albums, a)
	return make([]tele.Message, len(a)), nil
}

func TestSendPhotosPicksSingleOrAlbum(t *testing.T) {
	bot := &fakeBot{}
	m := newTelebot(bot, nil)
	ctx := context.Background()

	if err := SendPhotos(ctx, m, 1, []string{"only"}, "caption"); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 1 || len(bot.albums) != 0 {
		t.Fatalf("single photo: sent=%d albums=%d", len(bot.sent), len(bot.albums))
	}
	if p, ok := bot.sent[0].(*tele.Photo); !ok || p.FileID != "only" || p.Caption != "caption" {
		t.Fatalf("sent %#v", bot.sent[0])
	}

	if err := SendPhotos(ctx, m, 1, []string{"a", "b", "c"}, "listing"); err != nil {
		t.Fatal(err)
	}
	if len(bot.albums) != 1 || len(bot.albums[0]) != 3 {
		t.Fatalf("albums = %v", bot.albums)
	}
	for i, want := range []string{"a", "b", "c"} {
		p := bot.albums[0][i].(*tele.Photo)
		if p.FileID != want {
			t.Fatalf("album[%d] = %s, want %s", i, p.FileID, want)
		}
		if (i == 0) != (p.Caption != "") {
			t.Fatalf("caption on album[%d] = %q", i, p.Caption)
		}
	}

	if err := SendPhotos(ctx, m, 1, nil, ""); err == nil {
		t.Fatal("expected error for empty photo list")
	}
}

func TestEditOrSendFallsBack(t *testing.T) {
	bot := &fakeBot{editErr: errors.New("telegram: message to edit not found (400)")}
	m := newTelebot(bot, nil)
	ref, err := EditOrSend(context.Background(), m, MessageRef{ChatID: 3, MessageID: 10}, 3, "menu", nil)
	if err != nil {
		t.Fatal(err)
	}
	if bot.edits != 1 || len(bot.sent) != 1 || ref.MessageID != 1 {
		t.Fatalf("edits=%d sent=%d ref=%+v", bot.edits, len(bot.sent), ref)
	}

	bot = &fakeBot{editErr: errors.New("telegram: bad request: message is not modified (400)")}
	m = newTelebot(bot, nil)
	ref, err = EditOrSend(context.Background(), m, MessageRef{ChatID: 3, MessageID: 10}, 3, "menu", nil)
	if err != nil || len(bot.sent) != 0 || ref.MessageID != 10 {
		t.Fatalf("not-modified edit: err=%v sent=%d ref=%+v", err, len(bot.sent), ref)
	}
}

func TestEditOrSendWithoutTargetSends(t *testing.T) {
	bot := &fakeBot{}
	if _, err := EditOrSend(context.Background(), newTelebot(bot, nil), MessageRef{}, 3, "hi", nil); err != nil {
		t.Fatal(err)
	}
	if bot.edits != 0 || len(bot.sent) != 1 {
		t.Fatalf("edits=%d sent=%d", bot.edits, len(bot.sent))
	}
}

func TestDeleteMessageUsesStoredRef(t *testing.T) {
	bot := &fakeBot{}
	m := newTelebot(bot, nil)
	if err := m.DeleteMessage(context.Background(), MessageRef{}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("zero ref err = %v", err)
	}
	if err := m.DeleteMessage(context.Background(), MessageRef{ChatID: -100, MessageID: 42}); err != nil {
		t.Fatal(err)
	}
	if got := bot.deleted[0]; got.MessageID != "42" || got.ChatID != -100 {
		t.Fatalf("deleted %+v", got)
	}
}

func TestTruncateCaption(t *testing.T) {
	long := strings.Repeat("ї", CaptionLimit+10)
	got := truncateCaption(long)
	if n := utf8.RuneCountInString(got); n != CaptionLimit {
		t.Fatalf("caption length = %d", n)
	}
	if short := "short"; truncateCaption(short) != short {
		t.Fatal("short caption changed")
	}
}

func TestMarkupLayout(t *testing.T) {
	if markup(nil) != nil {
		t.Fatal("nil keyboard must not produce markup")
	}
	m := markup(Keyboard{{{Text: "Approve", Unique: "approve", Data: "1|2"}, {Text: "Reject", Unique: "reject", Data: "1|2"}}})
	if len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 2 {
		t.Fatalf("layout = %+v", m.InlineKeyboard)
	}
	if got := Column(Button{Text: "a"}, Button{Text: "b"}); len(got) != 2 {
		t.Fatalf("Column rows = %d", len(got))
	}
}
