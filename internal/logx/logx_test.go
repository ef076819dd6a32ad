package logx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDebugfWritesThroughDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetDefault(prev)

	Debugf("retrying %s attempt %d", "send-single", 2)

	if !strings.Contains(buf.String(), "retrying send-single attempt 2") {
		t.Errorf("expected log output to contain formatted message, got: %s", buf.String())
	}
}

func TestWithContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithContext(context.Background(), l)
	got := FromContext(ctx)

	if got != l {
		t.Error("FromContext should return the logger stored by WithContext")
	}
}
