package database

import (
	"reflect"
	"testing"
)

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_posts.up.sql", "0002_submitters.up.sql", "0003_active_index.up.sql"}

	got := selectApplied(files, 1, 3)
	want := []string{"0002_submitters.up.sql", "0003_active_index.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("selectApplied = %v, want %v", got, want)
	}
	if got := selectApplied(files, 3, 3); got != nil {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestParseVersion(t *testing.T) {
	if v := parseVersion("0042_add_column.up.sql"); v != 42 {
		t.Fatalf("parseVersion = %d, want 42", v)
	}
	if v := parseVersion("garbage.sql"); v != 0 {
		t.Fatalf("parseVersion(garbage) = %d, want 0", v)
	}
}

func TestConfigURL(t *testing.T) {
	cfg := Config{Host: "db", Port: "5433", User: "bot", Password: "p@ss", Name: "books", SSLMode: "disable"}
	want := "postgres://bot:p%40ss@db:5433/books?sslmode=disable"
	if got := cfg.URL(); got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
}

func TestConfigNormalizeDefaults(t *testing.T) {
	cfg := Config{Host: "db", Name: "books"}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Port != "5432" || cfg.SSLMode != "disable" || cfg.MaxConnections != 10 || cfg.MigrationsDir != "migrations" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := (&Config{Name: "books"}).Normalize(); err == nil {
		t.Fatal("expected missing host error")
	}
}
