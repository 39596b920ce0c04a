package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

func TestDoRetriesServerErrorsThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	client := New(5*time.Second, 2)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	buf, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(buf) != "ok" {
		t.Fatalf("body = %q, want ok", buf)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsAtRetryBudget(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(5*time.Second, 1)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := client.Do(context.Background(), req)
	if qaerr.CodeOf(err) != qaerr.CodeUnavailable {
		t.Fatalf("code = %v, want unavailable", qaerr.CodeOf(err))
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2 (initial + 1 retry)", attempts)
	}
}

func TestDoDoesNotRetryAuthFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "no", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(5*time.Second, 3)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := client.Do(context.Background(), req)
	if qaerr.CodeOf(err) != qaerr.CodeAuth {
		t.Fatalf("code = %v, want auth", qaerr.CodeOf(err))
	}
	if attempts != 1 {
		t.Fatalf("auth failure retried: %d attempts", attempts)
	}
}

func TestDoReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(buf))
		if len(bodies) == 1 {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	payload := []byte(`{"v":1}`)
	req, _ := http.NewRequest(http.MethodPost, server.URL, bytes.NewReader(payload))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	client := New(5*time.Second, 1)
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if len(bodies) != 2 || bodies[0] != bodies[1] {
		t.Fatalf("body not replayed identically: %v", bodies)
	}
}

func TestDoJSONDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hash":"abc"}`)
	}))
	defer server.Close()

	client := New(5*time.Second, 0)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	var out struct {
		Hash string `json:"hash"`
	}
	if err := client.DoJSON(context.Background(), req, &out); err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if out.Hash != "abc" {
		t.Fatalf("hash = %s, want abc", out.Hash)
	}
}

func TestDoJSONRejectsInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer server.Close()

	client := New(5*time.Second, 0)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	var out map[string]any
	if err := client.DoJSON(context.Background(), req, &out); qaerr.CodeOf(err) != qaerr.CodeUnavailable {
		t.Fatalf("code = %v, want unavailable", qaerr.CodeOf(err))
	}
}
