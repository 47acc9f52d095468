package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"docplain/internal/fault"
	"docplain/internal/store"
)

func modelServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func okResponse(text string, tokens int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"text":  text,
			"usage": map[string]int{"tokens": tokens},
		})
	}
}

func newTestAdapter(t *testing.T, descriptors ...store.ModelDescriptor) *Adapter {
	t.Helper()
	reg, err := NewRegistry(descriptors)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return NewAdapter(reg, 2*time.Second, nil)
}

func TestInvoke_PrimarySucceeds(t *testing.T) {
	var prompts int32
	srv := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&prompts, 1)

		var req invokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Prompt != "Simplify this" || req.MaxTokens != 1024 {
			t.Errorf("request not forwarded: %+v", req)
		}
		okResponse("plain text", 42)(w, r)
	})

	adapter := newTestAdapter(t, store.ModelDescriptor{Name: "m", Endpoint: srv.URL})

	got, err := adapter.Invoke(context.Background(), "m", "Simplify this", Params{Temperature: 0.1, MaxTokens: 1024})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.Text != "plain text" || got.Tokens != 42 || got.Model != "m" {
		t.Errorf("got %+v", got)
	}
	if atomic.LoadInt32(&prompts) != 1 {
		t.Errorf("expected 1 call, got %d", prompts)
	}
}

func TestInvoke_FallsBackOnServerError(t *testing.T) {
	primary := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	fallback := modelServer(t, okResponse("from fallback", 10))

	adapter := newTestAdapter(t,
		store.ModelDescriptor{Name: "primary", Endpoint: primary.URL, FallbackOrder: []string{"backup"}},
		store.ModelDescriptor{Name: "backup", Endpoint: fallback.URL},
	)

	got, err := adapter.Invoke(context.Background(), "primary", "p", Params{})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.Model != "backup" {
		t.Errorf("expected fallback model, got %q", got.Model)
	}
	if got.Text != "from fallback" {
		t.Errorf("got text %q", got.Text)
	}
}

func TestInvoke_ExhaustedChainIsModelError(t *testing.T) {
	down := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	adapter := newTestAdapter(t,
		store.ModelDescriptor{Name: "a", Endpoint: down.URL, FallbackOrder: []string{"b"}},
		store.ModelDescriptor{Name: "b", Endpoint: down.URL},
	)

	_, err := adapter.Invoke(context.Background(), "a", "p", Params{})
	if err == nil {
		t.Fatal("expected error after exhausting the chain")
	}
	if fault.KindOf(err) != fault.KindModel {
		t.Errorf("expected model error, got %v", fault.KindOf(err))
	}
}

func TestInvoke_TruncatedIsValidationErrorAndStopsChain(t *testing.T) {
	var fallbackCalled int32
	truncating := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"text":      "cut off mid-sent",
			"truncated": true,
			"usage":     map[string]int{"tokens": 512},
		})
	})
	fallback := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fallbackCalled, 1)
		okResponse("full", 10)(w, r)
	})

	adapter := newTestAdapter(t,
		store.ModelDescriptor{Name: "primary", Endpoint: truncating.URL, FallbackOrder: []string{"backup"}},
		store.ModelDescriptor{Name: "backup", Endpoint: fallback.URL},
	)

	_, err := adapter.Invoke(context.Background(), "primary", "p", Params{MaxTokens: 512})
	if err == nil {
		t.Fatal("expected error for truncated completion")
	}
	if fault.KindOf(err) != fault.KindValidation {
		t.Errorf("expected validation error, got %v", fault.KindOf(err))
	}
	if atomic.LoadInt32(&fallbackCalled) != 0 {
		t.Error("truncation must not trigger the fallback chain")
	}
}

func TestInvoke_EmptyTextIsModelError(t *testing.T) {
	empty := modelServer(t, okResponse("   ", 0))

	adapter := newTestAdapter(t, store.ModelDescriptor{Name: "m", Endpoint: empty.URL})

	_, err := adapter.Invoke(context.Background(), "m", "p", Params{})
	if err == nil {
		t.Fatal("expected error for empty completion")
	}
	if fault.KindOf(err) != fault.KindModel {
		t.Errorf("expected model error, got %v", fault.KindOf(err))
	}
}

func TestInvoke_MalformedBodyIsModelError(t *testing.T) {
	garbage := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	adapter := newTestAdapter(t, store.ModelDescriptor{Name: "m", Endpoint: garbage.URL})

	_, err := adapter.Invoke(context.Background(), "m", "p", Params{})
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	if fault.KindOf(err) != fault.KindModel {
		t.Errorf("expected model error, got %v", fault.KindOf(err))
	}
}

func TestInvoke_CallTimeout(t *testing.T) {
	slow := modelServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		okResponse("late", 1)(w, r)
	})

	reg, _ := NewRegistry([]store.ModelDescriptor{{Name: "m", Endpoint: slow.URL}})
	adapter := NewAdapter(reg, 50*time.Millisecond, nil)

	_, err := adapter.Invoke(context.Background(), "m", "p", Params{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if fault.KindOf(err) != fault.KindModel {
		t.Errorf("timeouts are external failures, got %v", fault.KindOf(err))
	}
}

func TestInvoke_UnknownModelIsConfigError(t *testing.T) {
	adapter := newTestAdapter(t, store.ModelDescriptor{Name: "m", Endpoint: "http://unused"})

	_, err := adapter.Invoke(context.Background(), "ghost", "p", Params{})
	if err == nil {
		t.Fatal("expected error for unknown model ref")
	}
	if fault.KindOf(err) != fault.KindConfig {
		t.Errorf("expected config error, got %v", fault.KindOf(err))
	}
}

func TestExcerptBody_MultiByteRuneAtBoundary(t *testing.T) {
	raw := []byte(strings.Repeat("x", 255) + "é" + strings.Repeat("y", 50))
	got := excerptBody(raw)
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt is not valid UTF-8: %q", got)
	}
	if len(got) > 256 {
		t.Errorf("excerpt too long: %d bytes", len(got))
	}
}
