package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/MyhlovetsVladyslav/bookbot/core/config"
	coredatabase "github.com/MyhlovetsVladyslav/bookbot/core/database"
)

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunStopsOnConnectFailure(t *testing.T) {
	migrated := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			return nil, errors.New("refused")
		},
		Migrate: func(coredatabase.Config) error {
			migrated = true
			return nil
		},
	})
	if err == nil {
		t.Fatal("expected connect error")
	}
	if migrated {
		t.Fatal("migrations must not run without a connection")
	}
}

func TestRunPropagatesLoggerFailure(t *testing.T) {
	want := errors.New("no sink")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return want },
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want wrapped %v", err, want)
	}
}

func TestRunWaitsForDatabaseWhenConfigured(t *testing.T) {
	var waitedFor time.Duration
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Host: "db", Name: "books", WaitTimeout: 30 * time.Second},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Wait: func(_ context.Context, _ string, timeout time.Duration) error {
			waitedFor = timeout
			return errors.New("still starting")
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, errors.New("unreachable")
		},
	})
	if err == nil {
		t.Fatal("expected wait error")
	}
	if waitedFor != 30*time.Second || connected {
		t.Fatalf("waited=%v connected=%v", waitedFor, connected)
	}
}
