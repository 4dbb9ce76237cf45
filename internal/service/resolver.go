// resolver.go — определение URL файла на origin.
// Короткие пути — файлы telegra.ph, длинные — file_id Telegram Bot API,
// которые разрешаются через getFile. Ошибки lookup не прерывают запрос:
// используется прямой путь на origin.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/image-gate/internal/tgclient"
)

// lookupPathThreshold — пути длиннее этого значения считаются file_id Telegram.
const lookupPathThreshold = 39

// Источники URL файла.
const (
	SourceOrigin   = "origin"
	SourceTelegram = "telegram"
)

// Prometheus-метрики lookup.
var lookupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ig_lookup_total",
	Help: "Количество разрешений file_id Telegram (hit, ok, miss, error).",
}, []string{"result"})

// FileLocator — разрешение file_id в URL файла (Telegram Bot API).
type FileLocator interface {
	GetFilePath(ctx context.Context, fileID string) (string, error)
	FileURL(filePath string) string
}

// Resolution — результат разрешения пути.
type Resolution struct {
	// URL — адрес, по которому запрашивается файл
	URL string
	// PublicURL — публичный адрес файла на origin (для модерации)
	PublicURL string
	// Source — origin или telegram
	Source string
}

// Resolver — определение URL файла на origin.
type Resolver struct {
	originURL string
	locator   FileLocator
	cache     *LookupCache
	logger    *slog.Logger
}

// NewResolver создаёт resolver.
// locator == nil — lookup отключён (не задан токен бота), все пути прямые.
func NewResolver(originURL string, locator FileLocator, cache *LookupCache, logger *slog.Logger) *Resolver {
	return &Resolver{
		originURL: strings.TrimRight(originURL, "/"),
		locator:   locator,
		cache:     cache,
		logger:    logger.With(slog.String("component", "resolver")),
	}
}

// Resolve возвращает URL файла для пути и query входящего запроса.
func (r *Resolver) Resolve(ctx context.Context, path, rawQuery string) Resolution {
	direct := r.originURL + path
	if rawQuery != "" {
		direct += "?" + rawQuery
	}
	res := Resolution{URL: direct, PublicURL: direct, Source: SourceOrigin}

	if r.locator == nil || len(path) <= lookupPathThreshold {
		return res
	}

	fileID := TelegramFileID(path)
	if fileID == "" {
		return res
	}

	filePath, ok := r.lookup(ctx, fileID)
	if !ok {
		return res
	}

	// query не передаётся в Telegram file storage
	res.URL = r.locator.FileURL(filePath)
	res.Source = SourceTelegram
	return res
}

// lookup разрешает file_id через кэш и Telegram Bot API.
func (r *Resolver) lookup(ctx context.Context, fileID string) (string, bool) {
	if filePath, ok := r.cache.Get(fileID); ok {
		lookupTotal.WithLabelValues("hit").Inc()
		return filePath, true
	}

	filePath, err := r.locator.GetFilePath(ctx, fileID)
	if err != nil {
		if errors.Is(err, tgclient.ErrFileNotFound) {
			lookupTotal.WithLabelValues("miss").Inc()
			r.logger.Debug("file_id не найден в Telegram, используется прямой путь",
				slog.String("file_id", fileID),
			)
		} else {
			lookupTotal.WithLabelValues("error").Inc()
			r.logger.Warn("Ошибка lookup, используется прямой путь",
				slog.String("file_id", fileID),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}

	lookupTotal.WithLabelValues("ok").Inc()
	r.cache.Set(fileID, filePath)
	return filePath, true
}

// TelegramFileID извлекает file_id из пути: второй сегмент части до первой точки.
// /file/<id>.jpg → <id>. Пустая строка — сегмента нет.
func TelegramFileID(path string) string {
	beforeDot, _, _ := strings.Cut(path, ".")
	segments := strings.Split(beforeDot, "/")
	if len(segments) < 3 {
		return ""
	}
	return segments[2]
}
