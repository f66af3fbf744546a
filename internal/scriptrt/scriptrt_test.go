package scriptrt

import (
	"net/http"
	"testing"

	"github.com/nugget-labs/nugget/internal/apperror"
	"github.com/nugget-labs/nugget/internal/objectstore"
	"github.com/nugget-labs/nugget/internal/scriptstate"
)

func TestRunReturnsStatusAndBody(t *testing.T) {
	code := `return {status=401, body={error="u"}}`
	result, err := Run(code, Request{Method: "GET"}, objectstore.New(), scriptstate.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != 401 {
		t.Fatalf("expected status 401, got %d", result.Status)
	}
	body, ok := result.Body.(map[string]any)
	if !ok || body["error"] != "u" {
		t.Fatalf("unexpected body: %v", result.Body)
	}
}

func TestRunDefaultsStatusTo200(t *testing.T) {
	code := `return {body={ok=true}}`
	result, err := Run(code, Request{}, objectstore.New(), scriptstate.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != 200 {
		t.Fatalf("expected default status 200, got %d", result.Status)
	}
}

func TestRunMissingBodyIsScriptReturnShape(t *testing.T) {
	code := `return {status=200}`
	_, err := Run(code, Request{}, objectstore.New(), scriptstate.New())
	assertKind(t, err, apperror.KindScriptReturnShape)
}

func TestRunNonObjectReturnIsScriptReturnShape(t *testing.T) {
	code := `return 42`
	_, err := Run(code, Request{}, objectstore.New(), scriptstate.New())
	assertKind(t, err, apperror.KindScriptReturnShape)
}

func TestRunThrowIsScriptRuntimeError(t *testing.T) {
	code := `error("boom")`
	_, err := Run(code, Request{}, objectstore.New(), scriptstate.New())
	assertKind(t, err, apperror.KindScriptRuntimeError)
}

func TestRunMixedKeyTableIsScriptConversionError(t *testing.T) {
	code := `local t = {[1]="a", foo="b"}; return {body=t}`
	_, err := Run(code, Request{}, objectstore.New(), scriptstate.New())
	assertKind(t, err, apperror.KindScriptConversionError)
}

func TestRunStateRoundTripsAcrossInvocations(t *testing.T) {
	state := scriptstate.New()
	store := objectstore.New()

	inc := `
		local n = state.get("n")
		if n == nil then n = 0 end
		n = n + 1
		state.set("n", n)
		return {body={request_number=n}}
	`

	var last Result
	for i := 0; i < 3; i++ {
		result, err := Run(inc, Request{}, store, state)
		if err != nil {
			t.Fatalf("unexpected error on iteration %d: %v", i, err)
		}
		last = result
	}
	body := last.Body.(map[string]any)
	if body["request_number"] != int64(3) {
		t.Fatalf("expected request_number=3, got %v", body["request_number"])
	}

	state.Clear()
	result, err := Run(inc, Request{}, store, state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body = result.Body.(map[string]any)
	if body["request_number"] != int64(1) {
		t.Fatalf("expected request_number=1 after clear, got %v", body["request_number"])
	}
}

func TestRunObjectsSnapshotIsVisible(t *testing.T) {
	store := objectstore.New()
	store.Put("order", map[string]any{"id": "X", "total": 1200.0})

	code := `return {body={count=#objects.order}}`
	result, err := Run(code, Request{}, store, scriptstate.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := result.Body.(map[string]any)
	if body["count"] != int64(1) {
		t.Fatalf("expected count=1, got %v", body["count"])
	}
}

func TestRunHeaderLookupIsCaseInsensitive(t *testing.T) {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	code := `return {body={a=request.headers["content-type"], b=request.headers["Content-Type"]}}`
	result, err := Run(code, Request{Headers: headers}, objectstore.New(), scriptstate.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := result.Body.(map[string]any)
	if body["a"] != "application/json" || body["b"] != "application/json" {
		t.Fatalf("expected case-insensitive header lookup, got %v", body)
	}
}

func assertKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	appErr, ok := err.(*apperror.Error)
	if !ok {
		t.Fatalf("expected *apperror.Error, got %T (%v)", err, err)
	}
	if appErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s", kind, appErr.Kind)
	}
}
