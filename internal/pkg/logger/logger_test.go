package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithRequestIDTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := WithContext(context.Background(), &base)
	ctx = WithRequestID(ctx, "req-42")

	if got := RequestID(ctx); got != "req-42" {
		t.Fatalf("expected req-42, got %q", got)
	}

	LogInfo(ctx, "payment reconciled", "payment_id", "p-1", "dangling")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["request_id"] != "req-42" || entry["payment_id"] != "p-1" || entry["message"] != "payment reconciled" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestRequestIDDefaultsToUnknown(t *testing.T) {
	if got := RequestID(context.Background()); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
