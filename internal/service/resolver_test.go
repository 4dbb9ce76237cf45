package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/image-gate/internal/tgclient"
)

// telegramFileID — file_id длиной 40 символов (путь длиннее порога 39).
const telegramFileID = "AgACAgIAAxkDAAIBZ2V4bW9ja19maWxlX2lkXzEy"

// newMockTelegramServer создаёт тестовый HTTP-сервер, имитирующий Telegram Bot API.
// filePath == "" — getFile отвечает ok=false.
func newMockTelegramServer(filePath string, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			atomic.AddInt32(calls, 1)
			w.Header().Set("Content-Type", "application/json")
			if filePath == "" {
				_, _ = w.Write([]byte(`{"ok":false}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"x","file_path":"` + filePath + `"}}`))
		case strings.HasPrefix(r.URL.Path, "/file/bot"):
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("telegram-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// TestResolver_ShortPath проверяет прямой путь на origin.
func TestResolver_ShortPath(t *testing.T) {
	var calls int32
	tg := newMockTelegramServer("photos/a.jpg", &calls)
	defer tg.Close()

	r := NewResolver("https://telegra.ph/", tgclient.New(tg.URL, "t", time.Second, testLogger()), nil, testLogger())

	res := r.Resolve(context.Background(), "/file/abc.jpg", "w=100")
	if res.URL != "https://telegra.ph/file/abc.jpg?w=100" {
		t.Errorf("URL = %q", res.URL)
	}
	if res.PublicURL != res.URL || res.Source != SourceOrigin {
		t.Errorf("Resolution = %+v", res)
	}
	if calls != 0 {
		t.Error("для короткого пути lookup не вызывается")
	}
}

// TestResolver_TelegramLookup проверяет разрешение file_id через getFile.
func TestResolver_TelegramLookup(t *testing.T) {
	var calls int32
	tg := newMockTelegramServer("photos/file_7.jpg", &calls)
	defer tg.Close()

	r := NewResolver("https://telegra.ph", tgclient.New(tg.URL, "t0k", time.Second, testLogger()),
		NewLookupCache(10, time.Minute), testLogger())

	path := "/file/" + telegramFileID + ".jpg"
	res := r.Resolve(context.Background(), path, "x=1")

	if res.URL != tg.URL+"/file/bott0k/photos/file_7.jpg" {
		t.Errorf("URL = %q", res.URL)
	}
	if res.Source != SourceTelegram {
		t.Errorf("Source = %q", res.Source)
	}
	// Публичный URL для модерации — всегда origin
	if res.PublicURL != "https://telegra.ph"+path+"?x=1" {
		t.Errorf("PublicURL = %q", res.PublicURL)
	}

	// Повторный запрос — из кэша
	_ = r.Resolve(context.Background(), path, "")
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("вызовов getFile = %d, ожидался 1 (второй из кэша)", got)
	}
}

// TestResolver_LookupFallback проверяет откат на прямой путь при неудачном lookup.
func TestResolver_LookupFallback(t *testing.T) {
	var calls int32
	tg := newMockTelegramServer("", &calls)
	defer tg.Close()

	r := NewResolver("https://telegra.ph", tgclient.New(tg.URL, "t", time.Second, testLogger()),
		NewLookupCache(10, time.Minute), testLogger())

	path := "/file/" + telegramFileID + ".png"
	res := r.Resolve(context.Background(), path, "")
	if res.URL != "https://telegra.ph"+path || res.Source != SourceOrigin {
		t.Errorf("Resolution = %+v, ожидался прямой путь", res)
	}

	// Неудачный lookup не кэшируется
	_ = r.Resolve(context.Background(), path, "")
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("вызовов getFile = %d, ожидалось 2", got)
	}
}

// TestResolver_LookupUnavailable проверяет откат при недоступном Telegram API.
func TestResolver_LookupUnavailable(t *testing.T) {
	tg := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	addr := tg.URL
	tg.Close()

	r := NewResolver("https://telegra.ph", tgclient.New(addr, "t", time.Second, testLogger()), nil, testLogger())

	path := "/file/" + telegramFileID + ".png"
	if res := r.Resolve(context.Background(), path, ""); res.Source != SourceOrigin {
		t.Errorf("Source = %q, ожидался origin", res.Source)
	}
}

// TestResolver_NoLocator проверяет отключённый lookup (нет токена бота).
func TestResolver_NoLocator(t *testing.T) {
	r := NewResolver("https://telegra.ph", nil, nil, testLogger())

	path := "/file/" + telegramFileID + ".png"
	if res := r.Resolve(context.Background(), path, ""); res.URL != "https://telegra.ph"+path {
		t.Errorf("URL = %q", res.URL)
	}
}

// TestTelegramFileID проверяет извлечение file_id из пути.
func TestTelegramFileID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/file/abc.jpg", "abc"},
		{"/file/abc", "abc"},
		{"/file/abc.tar.gz", "abc"},
		{"/file/", ""},
		{"/file", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := TelegramFileID(tt.path); got != tt.want {
			t.Errorf("TelegramFileID(%q) = %q, ожидался %q", tt.path, got, tt.want)
		}
	}
}
