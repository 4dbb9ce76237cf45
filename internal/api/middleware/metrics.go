// metrics.go — Prometheus HTTP метрики Image Gate.
// Регистрирует метрики: ig_http_requests_total, ig_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики Image Gate
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ig_http_requests_total",
			Help: "Общее количество HTTP-запросов к Image Gate",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	// Раздача видео длится минутами, поэтому buckets шире DefBuckets.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ig_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Image Gate в секундах",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(normalizeMethod(r.Method), normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(normalizeMethod(r.Method), normalizedPath).Observe(duration)
		})
	}
}

// normalizePath заменяет идентификатор файла на {id}.
// /file/abc.jpg → /file/{id}; неизвестные пути → other.
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/block-img.html", "/whitelist-on.html":
		return path
	}

	if strings.HasPrefix(path, "/file/") {
		return "/file/{id}"
	}

	return "other"
}

// normalizeMethod ограничивает набор значений лейбла method:
// /file/{id} принимает произвольные методы.
func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return method
	}
	return "OTHER"
}
