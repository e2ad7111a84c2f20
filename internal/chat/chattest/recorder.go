// Package chattest provides a recording chat.Messenger for tests.
package chattest

import (
	"context"
	"strings"
	"sync"

	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
)

// Op names recorded by Recorder.
const (
	OpText   = "text"
	OpEdit   = "edit"
	OpPhoto  = "photo"
	OpAlbum  = "album"
	OpDelete = "delete"
	OpNotify = "notify"
)

// Call is one recorded messenger call.
type Call struct {
	Op       string
	ChatID   int64
	Text     string
	Photos   []string
	Keyboard chat.Keyboard
	Ref      chat.MessageRef
}

// HasButton reports whether the call carried a button with the given unique.
func (c Call) HasButton(unique string) bool {
	for _, row := range c.Keyboard {
		for _, b := range row {
			if b.Unique == unique {
				return true
			}
		}
	}
	return false
}

// Recorder records calls. Fail makes the named op return err.
type Recorder struct {
	mu     sync.Mutex
	calls  []Call
	nextID int
	fail   map[string]error
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{fail: make(map[string]error)}
}

// Fail makes op return err until cleared with a nil err.
func (r *Recorder) Fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

func (r *Recorder) record(c Call) (chat.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[c.Op]; err != nil {
		return chat.MessageRef{}, err
	}
	if c.Ref.IsZero() {
		r.nextID++
		c.Ref = chat.MessageRef{ChatID: c.ChatID, MessageID: r.nextID}
	}
	r.calls = append(r.calls, c)
	return c.Ref, nil
}

func (r *Recorder) SendText(_ context.Context, chatID int64, text string, kb chat.Keyboard) (chat.MessageRef, error) {
	return r.record(Call{Op: OpText, ChatID: chatID, Text: text, Keyboard: kb})
}

func (r *Recorder) EditText(_ context.Context, ref chat.MessageRef, text string, kb chat.Keyboard) error {
	_, err := r.record(Call{Op: OpEdit, ChatID: ref.ChatID, Text: text, Keyboard: kb, Ref: ref})
	return err
}

func (r *Recorder) SendPhoto(_ context.Context, chatID int64, fileID, caption string, kb chat.Keyboard) (chat.MessageRef, error) {
	return r.record(Call{Op: OpPhoto, ChatID: chatID, Text: caption, Photos: []string{fileID}, Keyboard: kb})
}

func (r *Recorder) SendAlbum(_ context.Context, chatID int64, fileIDs []string, caption string) error {
	_, err := r.record(Call{Op: OpAlbum, ChatID: chatID, Text: caption, Photos: append([]string(nil), fileIDs...)})
	return err
}

func (r *Recorder) DeleteMessage(_ context.Context, ref chat.MessageRef) error {
	_, err := r.record(Call{Op: OpDelete, ChatID: ref.ChatID, Ref: ref})
	return err
}

func (r *Recorder) Notify(_ context.Context, chatID int64, text string) error {
	_, err := r.record(Call{Op: OpNotify, ChatID: chatID, Text: text})
	return err
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// To returns calls addressed to chatID.
func (r *Recorder) To(chatID int64) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.ChatID == chatID {
			out = append(out, c)
		}
	}
	return out
}

// Ops returns calls with the given op.
func (r *Recorder) Ops(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Last returns the last call to chatID.
func (r *Recorder) Last(chatID int64) (Call, bool) {
	calls := r.To(chatID)
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[len(calls)-1], true
}

// Contains reports whether any message to chatID contains substr.
func (r *Recorder) Contains(chatID int64, substr string) bool {
	for _, c := range r.To(chatID) {
		if strings.Contains(c.Text, substr) {
			return true
		}
	}
	return false
}

// Reset drops recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

var _ chat.Messenger = (*Recorder)(nil)
