package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hanko-field/storefront/internal/platform/requestctx"
)

func TestErrorTableResolve(t *testing.T) {
	errMissing := errors.New("missing")
	errBusy := errors.New("busy")
	table := ErrorTable{
		{Target: errMissing, Code: "not_found", Status: http.StatusNotFound, Message: "resource not found"},
		{Target: errBusy, Code: "busy", Status: http.StatusConflict},
	}
	fallback := NewError("internal", "boom", http.StatusInternalServerError)

	got := table.Resolve(fmt.Errorf("lookup: %w", errMissing), fallback)
	if got.Status != http.StatusNotFound || got.Message != "resource not found" {
		t.Fatalf("unexpected mapping %+v", got)
	}

	got = table.Resolve(fmt.Errorf("write: %w", errBusy), fallback)
	if got.Code != "busy" || got.Message != "write: busy" {
		t.Fatalf("expected message to echo error, got %+v", got)
	}

	got = table.Resolve(errors.New("other"), fallback)
	if got.Code != "internal" {
		t.Fatalf("expected fallback, got %+v", got)
	}
}

func TestWriteErrorIncludesTrace(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "abc"})
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("bad\nrequest", "invalid\r\ninput", http.StatusBadRequest).WithDetails(map[string]any{"field": "qty"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "bad request" || body["trace_id"] != "abc" || body["field"] != "qty" {
		t.Fatalf("unexpected body %v", body)
	}
}
