package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(config.DocStoreConfig{BaseURL: srv.URL + "/", AuthToken: "tok", Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresHTTPURL(t *testing.T) {
	if _, err := NewClient(config.DocStoreConfig{}, nil); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewClient(config.DocStoreConfig{BaseURL: "ftp://example.com"}, nil); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}

func TestGetBuildsJSONPathAndAuth(t *testing.T) {
	var gotPath, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.URL.Query().Get("auth")
		_, _ = io.WriteString(w, `{"name":"Milk"}`)
	})

	raw, err := client.Get(context.Background(), "stores/s1/products/p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPath != "/stores/s1/products/p1.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "tok" {
		t.Fatalf("expected auth token query, got %q", gotAuth)
	}
	if string(raw) != `{"name":"Milk"}` {
		t.Fatalf("unexpected body %s", raw)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "null")
	})
	raw, err := client.Get(context.Background(), "orders/none")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if raw != nil {
		t.Fatalf("expected nil for missing document, got %s", raw)
	}
}

func TestPutAndPatchSendJSONBodies(t *testing.T) {
	var methods []string
	var bodies []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		_, _ = w.Write(b)
	})

	ctx := context.Background()
	if _, err := client.Put(ctx, "users/u1/cart/p1", map[string]any{"quantity": 2}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := client.Patch(ctx, "stores/s1", map[string]any{"name": "Corner"}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if methods[0] != http.MethodPut || methods[1] != http.MethodPatch {
		t.Fatalf("unexpected methods %v", methods)
	}
	if bodies[0] != `{"quantity":2}` {
		t.Fatalf("unexpected put body %s", bodies[0])
	}
}

func TestPutIfMatchReturnsMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("if-match") != "old" {
			t.Errorf("expected if-match header")
		}
		if r.Header.Get("X-Firebase-ETag") != "true" {
			t.Errorf("expected etag request header")
		}
		w.Header().Set("ETag", "fresh")
		w.WriteHeader(http.StatusPreconditionFailed)
		_, _ = io.WriteString(w, "7")
	})

	current, etag, err := client.PutIfMatch(context.Background(), "stores/s1/products/p1/scan_count", 5, "old")
	if !errors.Is(err, ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
	if etag != "fresh" || string(current) != "7" {
		t.Fatalf("unexpected current %s etag %s", current, etag)
	}
}

func TestKeysUsesShallowQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("shallow") != "true" {
			t.Errorf("expected shallow=true")
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"s2": true, "s1": true})
	})
	keys, err := client.Keys(context.Background(), "stores")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "s1" || keys[1] != "s2" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestErrorStatusesMapToTypedErrors(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{status: http.StatusBadRequest, code: pkgerrors.CodeValidation},
		{status: http.StatusUnauthorized, code: pkgerrors.CodeDependency},
		{status: http.StatusInternalServerError, code: pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = io.WriteString(w, `{"error":"nope"}`)
		})
		_, err := client.Get(context.Background(), "stores")
		if !pkgerrors.IsCode(err, tt.code) {
			t.Fatalf("status %d: expected %s, got %v", tt.status, tt.code, err)
		}
	}
}

func TestInvalidPathRejectedBeforeRequest(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := client.Get(context.Background(), "requests/s1/milk.2L")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called {
		t.Fatal("request should not be sent for an invalid path")
	}
}

func TestTransportFailureIsDependencyError(t *testing.T) {
	client, err := NewClient(config.DocStoreConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Delete(context.Background(), "users/u1/cart"); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
