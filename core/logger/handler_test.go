package logger

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func captureLine(t *testing.T, format logFormat, emit func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	emit(slog.New(handler))
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	return line
}

func assertOrdered(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		idx := strings.Index(line, p)
		if idx == -1 || idx < pos {
			t.Fatalf("%s not found in order within %s", p, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(Background(), "rid-123"), 42, 7, 9)
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "app"), slog.LevelInfo, "test.event",
			slog.String("status", "OK"),
			slog.String("cause", "unit"),
		)
	})
	tokens := strings.Split(line, " ")
	want := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	if len(tokens) < len(want) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(Background(), "rid-json"), 11, 22, 33)
	line := captureLine(t, formatJSON, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "service.moderation"), slog.LevelError, "publish.failed",
			slog.String("status", "fail"),
			slog.String("err", "boom"),
		)
	})
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	assertOrdered(t, line, `{"ts":`, `"level":"ERROR"`, `"component":"service.moderation"`, `"event":"publish.failed"`, `"status":"fail"`, `"rid":"rid-json"`, `"err":"boom"`)
}

func TestStructuredHandlerDomainKeys(t *testing.T) {
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		l.With("component", "service.posts").Info("post.transition",
			slog.String("stage", "awaiting_photos"),
			slog.Int64("post_id", 17),
			slog.String("from_stage", "awaiting_description"),
			slog.Int("photos", 3),
			slog.String("zzz", "tail"),
		)
	})
	assertOrdered(t, line, "event=post.transition", "post_id=17", "stage=awaiting_photos", "from_stage=awaiting_description", "photos=3", "zzz=tail")
}

func TestStructuredHandlerDurationAndOutcome(t *testing.T) {
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		l.Info("sweep.done",
			slog.Duration("duration", 1499*time.Microsecond),
			slog.String("outcome", "exploded"),
		)
	})
	if !strings.Contains(line, "duration_ms=1") {
		t.Fatalf("expected rounded duration, got %s", line)
	}
	if strings.Contains(line, "outcome=") {
		t.Fatalf("unknown outcome must be dropped, got %s", line)
	}
	if !strings.Contains(line, "component=app") {
		t.Fatalf("expected default component, got %s", line)
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := "123:456:789"
	ctx := WithRID(Background(), rawRID)
	kv := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "rid.test")
	})
	if !strings.Contains(kv, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", kv)
	}
	if strings.Contains(kv, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", kv)
	}

	js := captureLine(t, formatJSON, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "rid.test")
	})
	if !strings.Contains(js, `"rid_full":"`+rawRID+`"`) || !strings.Contains(js, `"ts_unix_nano"`) {
		t.Fatalf("expected rid_full and ts_unix_nano in JSON output, got %s", js)
	}
}

func TestDetachKeepsMetadata(t *testing.T) {
	ctx := WithHandler(WithUpdateMeta(WithRID(Background(), "r"), 5, 6, 7), "photo")
	d := Detach(ctx)
	if RIDFrom(d) != "r" || UpdateIDFrom(d) != 5 || UserIDFrom(d) != 6 || ChatIDFrom(d) != 7 || HandlerFrom(d) != "photo" {
		t.Fatalf("metadata lost after Detach")
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\u200bbc\x07d", 3); got != "abc" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}
