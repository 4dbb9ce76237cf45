// handler.go — маршруты Image Gate.
// Объединяет обработчики файлов, health endpoints и страниц уведомлений.
package handlers

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/image-gate/internal/api/errors"
	"github.com/bigkaa/goartstore/image-gate/internal/domain/policy"
)

// pagesFS — встроенные страницы уведомлений (блокировка, режим белого списка).
//
//go:embed pages/*.html
var pagesFS embed.FS

// APIHandler — набор обработчиков Image Gate.
type APIHandler struct {
	files  *FileHandler
	health *HealthHandler
}

// NewAPIHandler создаёт набор обработчиков.
func NewAPIHandler(files *FileHandler, health *HealthHandler) *APIHandler {
	return &APIHandler{
		files:  files,
		health: health,
	}
}

// Register регистрирует маршруты в router.
// /file/{id} принимает любой метод: метод и тело передаются origin.
func (h *APIHandler) Register(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Get(policy.BlockPagePath, servePage("pages/block-img.html"))
	r.Get(policy.WhitelistPagePath, servePage("pages/whitelist-on.html"))

	r.HandleFunc("/file/{id}", h.files.ServeFile)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден")
	})
}

// servePage отдаёт встроенную HTML-страницу.
func servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := pagesFS.ReadFile(name)
		if err != nil {
			apierrors.NotFound(w, "Страница не найдена")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
