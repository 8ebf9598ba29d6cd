package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPTransport_Post(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotHeader      string
		gotBody        []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotHeader = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusTeapot)
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer server.Close()

	tr := New(time.Second)
	status, body, err := tr.Post(context.Background(), server.URL+"/v1/auth/challenge",
		map[string]string{"Authorization": "Bearer tok"}, []byte(`{"account_id":"a"}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if status != http.StatusTeapot {
		t.Errorf("status = %d, want %d", status, http.StatusTeapot)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotHeader != "Bearer tok" {
		t.Errorf("authorization = %q", gotHeader)
	}
	if string(gotBody) != `{"account_id":"a"}` {
		t.Errorf("body = %s", gotBody)
	}
	if len(body) == 0 {
		t.Error("response body not returned")
	}
}

func TestHTTPTransport_Post_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing listens here anymore

	tr := New(time.Second)
	if _, _, err := tr.Post(context.Background(), server.URL, nil, nil); err == nil {
		t.Fatal("Post() error = nil, want a connection error")
	}
}

func TestHTTPTransport_Post_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := New(time.Second)
	if _, _, err := tr.Post(ctx, server.URL, nil, nil); err == nil {
		t.Fatal("Post() error = nil, want a context error")
	}
}
