package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/image-gate/internal/api/middleware"
	"github.com/bigkaa/goartstore/image-gate/internal/service"
)

// --- Mocks ---

// mockFileServer — мок pipeline раздачи файла.
type mockFileServer struct {
	serveFn func(ctx context.Context, w http.ResponseWriter, req service.FileRequest) error
	last    service.FileRequest
}

func (m *mockFileServer) ServeFile(ctx context.Context, w http.ResponseWriter, req service.FileRequest) error {
	m.last = req
	if m.serveFn != nil {
		return m.serveFn(ctx, w, req)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

// mockChecker — мок ReadinessChecker.
type mockChecker struct {
	status, message string
}

func (m mockChecker) CheckReady() (string, string) { return m.status, m.message }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRouter собирает router с обработчиками и middleware.
func newTestRouter(fs FileServer, publicURL string, health *HealthHandler, mws ...func(http.Handler) http.Handler) http.Handler {
	if health == nil {
		health = NewHealthHandler(nil, nil)
	}
	api := NewAPIHandler(NewFileHandler(fs, publicURL, testLogger()), health)

	r := chi.NewRouter()
	for _, mw := range mws {
		r.Use(mw)
	}
	api.Register(r)
	return r
}

// --- Тесты /file/{id} ---

// TestFileHandler_BuildsRequest проверяет передачу запроса в pipeline.
func TestFileHandler_BuildsRequest(t *testing.T) {
	fs := &mockFileServer{}
	router := newTestRouter(fs, "", nil)

	req := httptest.NewRequest(http.MethodPost, "http://gate.local/file/abc.jpg?w=10", strings.NewReader("body"))
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	got := fs.last
	if got.FileID != "abc.jpg" || got.Path != "/file/abc.jpg" || got.RawQuery != "w=10" {
		t.Errorf("FileRequest = %+v", got)
	}
	if got.Method != http.MethodPost || got.ContentLength != 4 {
		t.Errorf("Method/ContentLength = %s/%d", got.Method, got.ContentLength)
	}
	if got.PublicBase != "https://gate.local" {
		t.Errorf("PublicBase = %q, ожидался https://gate.local", got.PublicBase)
	}
	if got.Admin {
		t.Error("запрос без признака администратора")
	}
}

// TestFileHandler_PublicURLOverride проверяет публичный адрес из конфигурации.
func TestFileHandler_PublicURLOverride(t *testing.T) {
	fs := &mockFileServer{}
	router := newTestRouter(fs, "https://img.example.com", nil)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://10.0.0.1:8040/file/a.png", nil))

	if fs.last.PublicBase != "https://img.example.com" {
		t.Errorf("PublicBase = %q", fs.last.PublicBase)
	}
}

// TestFileHandler_Admin проверяет признак администратора из middleware.
func TestFileHandler_Admin(t *testing.T) {
	fs := &mockFileServer{}
	router := newTestRouter(fs, "", nil, middleware.RefererAdmin("https://gate.example", testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/file/a.png", nil)
	req.Header.Set("Referer", "https://gate.example/admin")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if !fs.last.Admin {
		t.Error("ожидался запрос администратора")
	}
}

// TestFileHandler_OriginUnavailable проверяет ответ 502 ORIGIN_UNAVAILABLE.
func TestFileHandler_OriginUnavailable(t *testing.T) {
	fs := &mockFileServer{serveFn: func(_ context.Context, _ http.ResponseWriter, _ service.FileRequest) error {
		return fmt.Errorf("%w: dial tcp: connection refused", service.ErrOriginUnavailable)
	}}
	router := newTestRouter(fs, "", nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/file/a.png", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("ожидался 502, получен %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	if body.Error.Code != "ORIGIN_UNAVAILABLE" {
		t.Errorf("code = %q, ожидался ORIGIN_UNAVAILABLE", body.Error.Code)
	}
	if strings.Contains(body.Error.Message, "connection refused") {
		t.Error("детали ошибки транспорта не должны попадать клиенту")
	}
}

// TestRouter_NotFound проверяет JSON-ответ для неизвестного маршрута.
func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(&mockFileServer{}, "", nil)

	for _, path := range []string{"/", "/file/a/b.png", "/api/v1/files"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: ожидался 404, получен %d", path, rec.Code)
		}
	}
}

// --- Тесты страниц уведомлений ---

func TestPages(t *testing.T) {
	router := newTestRouter(&mockFileServer{}, "", nil)

	for _, path := range []string{"/block-img.html", "/whitelist-on.html"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Errorf("%s: ожидался 200, получен %d", path, rec.Code)
			continue
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s: Content-Type = %q", path, ct)
		}
		if !strings.Contains(rec.Body.String(), "<html") {
			t.Errorf("%s: ожидалась HTML-страница", path)
		}
	}
}

// --- Тесты health endpoints ---

func TestHealthLive(t *testing.T) {
	router := newTestRouter(&mockFileServer{}, "", nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	var resp healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Service != "image-gate" {
		t.Errorf("ответ = %+v", resp)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		store      ReadinessChecker
		jwks       ReadinessChecker
		wantStatus string
		wantCode   int
	}{
		{"без зависимостей", nil, nil, "ok", http.StatusOK},
		{"хранилище ok", mockChecker{"ok", ""}, nil, "ok", http.StatusOK},
		{"хранилище degraded", mockChecker{"degraded", "Redis недоступен"}, nil, "degraded", http.StatusOK},
		{"fail", mockChecker{"fail", ""}, nil, "fail", http.StatusServiceUnavailable},
		{"JWKS degraded", mockChecker{"ok", ""}, mockChecker{"degraded", "JWKS недоступен"}, "degraded", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockFileServer{}, "", NewHealthHandler(tt.store, tt.jwks))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("код = %d, ожидался %d", rec.Code, tt.wantCode)
			}
			var resp healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидался %q", resp.Status, tt.wantStatus)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&mockFileServer{}, "", nil, middleware.MetricsMiddleware())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/file/a.png", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `ig_http_requests_total{method="GET",path="/file/{id}",status="200"}`) {
		t.Error("метрика ig_http_requests_total для /file/{id} не найдена")
	}
}
