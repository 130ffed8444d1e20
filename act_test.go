package lmstudio

import (
	"context"
	"errors"
	"testing"

	"github.com/nugget/lmstudio-go/internal/endpoint"
)

func TestRunToolInvalidCallReturnsErrorMessageWithoutInvokingImpl(t *testing.T) {
	invoked := false
	toolByName := map[string]Tool{
		"search": {Name: "search", Impl: func(ctx context.Context, args map[string]any) (string, error) {
			invoked = true
			return "", nil
		}},
	}
	call := endpoint.ToolCallRequest{Name: "search", Valid: false, ErrorMessage: "missing argument"}

	got := runTool(context.Background(), call, toolByName)
	if invoked {
		t.Fatal("an invalid call must not reach the tool implementation")
	}
	if got != "missing argument" {
		t.Fatalf("expected the validation error message, got %q", got)
	}
}

func TestRunToolUnknownToolName(t *testing.T) {
	call := endpoint.ToolCallRequest{Name: "ghost", Valid: true}
	got := runTool(context.Background(), call, map[string]Tool{})
	if got == "" {
		t.Fatal("expected a descriptive error string for a tool with no implementation")
	}
}

func TestRunToolImplError(t *testing.T) {
	toolByName := map[string]Tool{
		"fail": {Name: "fail", Impl: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("boom")
		}},
	}
	call := endpoint.ToolCallRequest{Name: "fail", Valid: true}
	got := runTool(context.Background(), call, toolByName)
	if got != "boom" {
		t.Fatalf("expected the implementation's error text, got %q", got)
	}
}

func TestRunToolSuccess(t *testing.T) {
	toolByName := map[string]Tool{
		"echo": {Name: "echo", Impl: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		}},
	}
	call := endpoint.ToolCallRequest{Name: "echo", Valid: true, Arguments: map[string]any{"text": "hi"}}
	got := runTool(context.Background(), call, toolByName)
	if got != "hi" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestDispatchToolsPreservesCallOrder(t *testing.T) {
	toolByName := map[string]Tool{
		"a": {Name: "a", Impl: func(ctx context.Context, args map[string]any) (string, error) { return "A", nil }},
		"b": {Name: "b", Impl: func(ctx context.Context, args map[string]any) (string, error) { return "B", nil }},
	}
	calls := []endpoint.ToolCallRequest{
		{Name: "b", Valid: true},
		{Name: "a", Valid: true},
	}

	results := dispatchTools(context.Background(), calls, toolByName, 2)
	if len(results) != 2 || results[0] != "B" || results[1] != "A" {
		t.Fatalf("expected results in call order, got %v", results)
	}
}

func TestDispatchToolsDefaultsConcurrencyWhenUnset(t *testing.T) {
	toolByName := map[string]Tool{
		"a": {Name: "a", Impl: func(ctx context.Context, args map[string]any) (string, error) { return "A", nil }},
	}
	calls := []endpoint.ToolCallRequest{{Name: "a", Valid: true}}
	results := dispatchTools(context.Background(), calls, toolByName, 0)
	if len(results) != 1 || results[0] != "A" {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestSafeInvokeRecoversPanic(t *testing.T) {
	ran := false
	safeInvoke(nil, "test", func() {
		ran = true
		panic("boom")
	})
	if !ran {
		t.Fatal("fn should have run before panicking")
	}
}
