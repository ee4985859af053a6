package helpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestWriteEntity_CanonicalBodyAndSlot(t *testing.T) {
	ctx, slot := WithEntitySlot(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/api/x", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	entity := map[string]any{"b": decimal.RequireFromString("2.50"), "a": "x"}
	WriteEntity(rr, r, http.StatusOK, entity)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Body.String(); got != `{"a":"x","b":2.5}` {
		t.Fatalf("body = %s", got)
	}
	v, ok := slot.Get()
	if !ok {
		t.Fatal("entity not recorded")
	}
	if m, _ := v.(map[string]any); m["a"] != "x" {
		t.Fatalf("slot holds %v", v)
	}
}

func TestSetEntity_WithoutSlot(t *testing.T) {
	if SetEntity(context.Background(), 1) {
		t.Fatal("SetEntity must be a no-op without slot")
	}
}

func TestWriteEntity_Unserializable(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	rr := httptest.NewRecorder()
	WriteEntity(rr, r, http.StatusOK, map[string]any{"f": func() {}})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}
