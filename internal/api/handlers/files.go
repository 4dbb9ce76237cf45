// files.go — обработчик ANY /file/{id}.
// Передаёт запрос в pipeline раздачи файла. Ответ (файл, redirect или
// ответ origin как есть) формирует gateway; обработчик отвечает сам только
// когда origin не ответил совсем.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/image-gate/internal/api/errors"
	"github.com/bigkaa/goartstore/image-gate/internal/api/middleware"
	"github.com/bigkaa/goartstore/image-gate/internal/service"
)

// FileServer — pipeline раздачи файла.
type FileServer interface {
	ServeFile(ctx context.Context, w http.ResponseWriter, req service.FileRequest) error
}

// FileHandler — обработчик запросов файлов.
type FileHandler struct {
	gateway   FileServer
	publicURL string
	logger    *slog.Logger
}

// NewFileHandler создаёт обработчик файлов.
// publicURL — публичный адрес gate; пустая строка — вычисляется из запроса.
func NewFileHandler(gateway FileServer, publicURL string, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		gateway:   gateway,
		publicURL: publicURL,
		logger:    logger.With(slog.String("component", "file_handler")),
	}
}

// ServeFile — реализация ANY /file/{id}.
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	err := h.gateway.ServeFile(r.Context(), w, service.FileRequest{
		FileID:        fileID,
		Path:          r.URL.EscapedPath(),
		RawQuery:      r.URL.RawQuery,
		Method:        r.Method,
		Header:        r.Header,
		Body:          r.Body,
		ContentLength: r.ContentLength,
		Admin:         middleware.IsAdmin(r.Context()),
		PublicBase:    middleware.PublicBase(r, h.publicURL),
	})
	if err == nil {
		return
	}

	if errors.Is(err, service.ErrOriginUnavailable) {
		h.logger.Warn("Origin недоступен",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		apierrors.OriginUnavailable(w, "Origin недоступен")
		return
	}

	h.logger.Error("Ошибка раздачи файла",
		slog.String("file_id", fileID),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, "Внутренняя ошибка при раздаче файла")
}
