package requestctx

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	reqCore, reqLogs := observer.New(zapcore.InfoLevel)

	log := EventLogger(zap.New(baseCore))

	ctx := WithTrace(WithLogger(context.Background(), zap.New(reqCore)), TraceInfo{TraceID: "trace-1"})
	log(ctx, "order.updated", map[string]any{"orderId": "ord_1"})

	if baseLogs.Len() != 0 {
		t.Fatalf("expected base logger unused, got %d entries", baseLogs.Len())
	}
	entries := reqLogs.All()
	if len(entries) != 1 || entries[0].Message != "order.updated" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "trace-1" || fields["orderId"] != "ord_1" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestEventLoggerFallsBackAndWarnsOnError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := EventLogger(zap.New(core))

	log(context.Background(), "checkout.compensation.failed", map[string]any{"error": errors.New("boom")})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[0].Level)
	}
	if entries[0].ContextMap()["error"] != "boom" {
		t.Fatalf("unexpected error field %v", entries[0].ContextMap())
	}
}
