package httpjson

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetDecodesJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing user agent")
		}
		_, _ = w.Write([]byte(`{"name":"n8n"}`))
	}))
	defer server.Close()

	var out struct {
		Name string `json:"name"`
	}
	if err := NewClient(WithDoer(server.Client())).Get(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Name != "n8n" {
		t.Fatalf("unexpected name %q", out.Name)
	}
}

func TestGetStripsPrefix(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(")]}',\n{\"value\":7}"))
	}))
	defer server.Close()

	var out struct {
		Value int `json:"value"`
	}
	client := NewClient(WithDoer(server.Client()), WithBodyPrefix(")]}',"))
	if err := client.Get(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Value != 7 {
		t.Fatalf("unexpected value %d", out.Value)
	}
}

func TestGetStatusErrorRedactsQuery(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewClient(WithDoer(server.Client())).Get(context.Background(), server.URL+"/v3/search?key=secret", &struct{}{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status %d", statusErr.StatusCode)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("error leaks query string: %v", err)
	}
}

func TestGetMalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	if err := NewClient(WithDoer(server.Client())).Get(context.Background(), server.URL, &struct{}{}); err == nil {
		t.Fatal("expected decode error")
	}
}
