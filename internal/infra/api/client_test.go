package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSignedURL(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/storage/signed-url" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"uploadUrl":"https://storage/put/1","uploadId":"u1","filePath":"audio/a.mp3","bucket":"songs"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123")
	resp, err := c.SignedURL(context.Background(), SignedURLRequest{
		Filename:    "a.mp3",
		ContentType: "audio/mpeg",
		Kind:        "audio",
	})
	if err != nil {
		t.Fatalf("SignedURL returned error: %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if !strings.Contains(gotBody, `"kind":"audio"`) {
		t.Errorf("request body missing kind: %s", gotBody)
	}
	if resp.UploadID != "u1" || resp.UploadURL != "https://storage/put/1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestStatusErrorCarriesBodyVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("duplicate title"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	err := c.CompleteUpload(context.Background(), CompleteUploadRequest{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if se.Body != "duplicate title" {
		t.Errorf("Body = %q, want server text verbatim", se.Body)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"uploadUrl":"u","uploadId":"i","filePath":"p","bucket":"b"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithRetry(3, time.Millisecond))
	if _, err := c.SignedURL(context.Background(), SignedURLRequest{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", WithRetry(3, time.Millisecond))
	if _, err := c.SignedURL(context.Background(), SignedURLRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single attempt for 4xx, got %d", calls)
	}
}

func TestPutObject(t *testing.T) {
	var gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q, want PUT", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
	}))
	defer srv.Close()

	c := NewClient("http://unused", "tok")
	err := c.PutObject(context.Background(), srv.URL, strings.NewReader("bytes"), 5, "audio/mpeg")
	if err != nil {
		t.Fatalf("PutObject returned error: %v", err)
	}
	if gotContentType != "audio/mpeg" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody != "bytes" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestPutObjectNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("http://unused", "tok")
	err := c.PutObject(context.Background(), srv.URL, strings.NewReader("x"), 1, "audio/mpeg")

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
}

func TestOwnTrackCountSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/songs/count" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("since") == "" {
			t.Error("missing since parameter")
		}
		w.Write([]byte(`{"count":4}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	n, err := c.OwnTrackCountSince(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("OwnTrackCountSince returned error: %v", err)
	}
	if n != 4 {
		t.Errorf("count = %d, want 4", n)
	}
}

func TestHasToken(t *testing.T) {
	if NewClient("http://x", "").HasToken() {
		t.Error("empty token should report false")
	}
	if !NewClient("http://x", "t").HasToken() {
		t.Error("non-empty token should report true")
	}
}
