package telegram

import (
	"testing"

	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "d"}); err == nil {
		t.Fatal("expected error for missing slash")
	}
	if err := reg.RegisterCommand("/start", commands.Command{Handler: noop}); err == nil {
		t.Fatal("expected error for missing description")
	}
	if err := reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "d"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "d"}); err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestListCommandsHidesAdminAndHidden(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"})
	_ = reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "Cancel"})
	_ = reg.RegisterCommand("/sweep", commands.Command{Handler: noop, Description: "Sweep", AdminOnly: true, Hidden: true})

	visible := reg.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "cancel" || visible[1].Text != "start" {
		t.Fatalf("visible commands = %+v", visible)
	}
	if all := reg.ListCommands(false); len(all) != 3 {
		t.Fatalf("all commands = %d, want 3", len(all))
	}
}

func TestLookupCommandAlias(t *testing.T) {
	reg := NewRegistry()
	_ = reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "Cancel", Aliases: []string{"stop"}})
	key, _, ok := reg.LookupCommand("stop")
	if !ok || key != "/cancel" {
		t.Fatalf("lookup alias = %q, %v", key, ok)
	}
	if _, _, ok := reg.LookupCommand("hello world"); ok {
		t.Fatal("unexpected match for free text")
	}
}

func TestRegisterCallbackDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("finish_photos", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCallback("finish_photos", noop); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, ok := reg.GetCallback("finish_photos"); !ok {
		t.Fatal("callback not found")
	}
	if got := reg.ListCallbacks(); len(got) != 1 || got[0] != "finish_photos" {
		t.Fatalf("callbacks = %v", got)
	}
}
