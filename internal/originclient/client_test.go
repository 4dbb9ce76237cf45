package originclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestFetch_ForwardsRequest проверяет проброс метода, тела и заголовков.
func TestFetch_ForwardsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("метод = %s, ожидался POST", r.Method)
		}
		if r.Header.Get("Range") != "bytes=0-9" {
			t.Errorf("Range = %q", r.Header.Get("Range"))
		}
		if r.Header.Get("X-Custom") != "1" {
			t.Errorf("X-Custom = %q", r.Header.Get("X-Custom"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization не должен уходить на origin")
		}
		if r.Header.Get("Cookie") != "" {
			t.Error("Cookie не должен уходить на origin")
		}
		if r.Header.Get("X-Hop") != "" {
			t.Error("заголовок из Connection не должен уходить на origin")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("тело = %q", body)
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New("", 0, testLogger())
	if err != nil {
		t.Fatalf("New ошибка: %v", err)
	}

	header := http.Header{}
	header.Set("Range", "bytes=0-9")
	header.Set("X-Custom", "1")
	header.Set("Authorization", "Bearer secret")
	header.Set("Cookie", "session=1")
	header.Set("Connection", "X-Hop")
	header.Set("X-Hop", "1")

	resp, err := c.Fetch(context.Background(), Request{
		Method:        http.MethodPost,
		URL:           srv.URL + "/file/a.png",
		Header:        header,
		Body:          strings.NewReader("payload"),
		ContentLength: 7,
	})
	if err != nil {
		t.Fatalf("Fetch ошибка: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("статус = %d, ожидался 206", resp.StatusCode)
	}
	// Исходные заголовки клиента не изменены
	if header.Get("Authorization") == "" {
		t.Error("ForwardHeaders не должен менять исходные заголовки")
	}
}

// TestFetch_NonOKPassthrough проверяет, что статус origin не считается ошибкой.
func TestFetch_NonOKPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	c, _ := New("", 0, testLogger())
	resp, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: srv.URL + "/x"})
	if err != nil {
		t.Fatalf("Fetch ошибка: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("статус = %d, ожидался 404", resp.StatusCode)
	}
}

// TestFetch_TransportError проверяет ошибку при недоступном origin.
func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c, _ := New("", 0, testLogger())
	resp, err := c.Fetch(context.Background(), Request{Method: http.MethodGet, URL: addr})
	if err == nil {
		resp.Body.Close()
		t.Fatal("ожидалась ошибка соединения")
	}
}

// TestNew_InvalidCACert проверяет ошибку при отсутствующем CA-сертификате.
func TestNew_InvalidCACert(t *testing.T) {
	if _, err := New("/nonexistent/ca.pem", 0, testLogger()); err == nil {
		t.Fatal("ожидалась ошибка")
	}
}

// TestRemoveHopHeaders проверяет удаление hop-by-hop заголовков.
func TestRemoveHopHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Content-Type", "image/png")

	RemoveHopHeaders(h)

	if h.Get("Transfer-Encoding") != "" || h.Get("Keep-Alive") != "" {
		t.Errorf("hop-by-hop заголовки не удалены: %v", h)
	}
	if h.Get("Content-Type") != "image/png" {
		t.Error("Content-Type не должен удаляться")
	}
}
