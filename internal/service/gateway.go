// gateway.go — pipeline раздачи файла с политикой доступа.
//
// Pipeline:
//  1. Определить URL файла (origin или Telegram)
//  2. Запросить файл у origin (метод, заголовки, тело клиента)
//  3. Ответ origin не 2xx → вернуть как есть
//  4. Администратор → раздать
//  5. Хранилище не сконфигурировано или недоступно → раздать
//  6. Загрузить метаданные, применить правила политики
//  7. Модерация (если нужна), сохранить метаданные
//  8. Раздать с формированием Content-Type / Content-Disposition
//
// Единственная ошибка pipeline — origin не ответил совсем (ErrOriginUnavailable).
// Остальные сбои (lookup, модерация, хранилище) обрабатываются внутри.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/image-gate/internal/domain/policy"
	"github.com/bigkaa/goartstore/image-gate/internal/moderation"
	"github.com/bigkaa/goartstore/image-gate/internal/originclient"
)

// ErrOriginUnavailable — origin не вернул ответ (соединение, DNS, таймаут).
var ErrOriginUnavailable = errors.New("origin недоступен")

// Исходы запроса для метрик и логов.
const (
	outcomeServed            = "served"
	outcomeUpstreamError     = "upstream_error"
	outcomeOriginUnavailable = "origin_unavailable"
	outcomeRedirectBlock     = "redirect_block"
	outcomeRedirectWhitelist = "redirect_whitelist"
	outcomeStreamError       = "stream_error"
)

// Дополнительные решения политики (вне таблицы правил).
const (
	decisionAdmin      = "admin"
	decisionNoStore    = "no_store"
	decisionStoreError = "store_error"
)

// Prometheus-метрики gateway.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ig_file_requests_total",
		Help: "Общее количество запросов файлов (по исходу).",
	}, []string{"outcome"})

	policyDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ig_policy_decisions_total",
		Help: "Количество решений политики доступа.",
	}, []string{"decision"})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ig_download_duration_seconds",
		Help:    "Длительность раздачи файла (от запроса до завершения streaming).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ig_download_bytes_total",
		Help: "Общее количество переданных байт файлов.",
	})

	activeDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ig_active_downloads",
		Help: "Количество активных (in-progress) раздач.",
	})
)

// OriginFetcher — запрос файла у origin.
type OriginFetcher interface {
	Fetch(ctx context.Context, r originclient.Request) (*http.Response, error)
}

// Classifier — классификация файла внешним API модерации.
type Classifier interface {
	Enabled() bool
	Classify(ctx context.Context, publicURL string) moderation.Result
}

// FileRequest — входящий запрос файла.
type FileRequest struct {
	// FileID — идентификатор файла (ключ метаданных), с расширением
	FileID string
	// Path и RawQuery — путь и query входящего запроса
	Path     string
	RawQuery string
	Method   string
	Header   http.Header
	Body     io.Reader
	// ContentLength — длина тела (-1 — неизвестна)
	ContentLength int64
	// Admin — запрос администратора, политика не применяется
	Admin bool
	// PublicBase — публичный адрес gate (scheme://host) для локальных redirect
	PublicBase string
}

// GatewayConfig — параметры политики gateway.
type GatewayConfig struct {
	// WhitelistMode — публичная раздача только whitelisted файлов
	WhitelistMode bool
	// BlockImageURL — картинка-заглушка для заблокированных файлов при наличии Referer
	BlockImageURL string
	// Disposition — политика Content-Type / Content-Disposition
	Disposition policy.DispositionPolicy
}

// Gateway — раздача файлов с политикой доступа.
type Gateway struct {
	resolver  *Resolver
	fetcher   OriginFetcher
	metadata  *MetadataAccessor
	moderator Classifier
	rules     policy.Rules
	cfg       GatewayConfig
	logger    *slog.Logger
}

// NewGateway создаёт gateway. moderator == nil — модерация отключена.
func NewGateway(
	resolver *Resolver,
	fetcher OriginFetcher,
	metadata *MetadataAccessor,
	moderator Classifier,
	cfg GatewayConfig,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		resolver:  resolver,
		fetcher:   fetcher,
		metadata:  metadata,
		moderator: moderator,
		rules: policy.Rules{
			WhitelistMode:     cfg.WhitelistMode,
			ModerationEnabled: moderator != nil && moderator.Enabled(),
		},
		cfg:    cfg,
		logger: logger.With(slog.String("component", "gateway")),
	}
}

// ServeFile выполняет pipeline для одного запроса.
// Возвращает ErrOriginUnavailable, если origin не ответил; в этом случае
// в w ничего не записано и ответ формирует вызывающий код.
func (g *Gateway) ServeFile(ctx context.Context, w http.ResponseWriter, req FileRequest) error {
	start := time.Now()
	activeDownloads.Inc()
	defer activeDownloads.Dec()

	// 1. URL файла
	res := g.resolver.Resolve(ctx, req.Path, req.RawQuery)

	// 2. Запрос к origin
	resp, err := g.fetcher.Fetch(ctx, originclient.Request{
		Method:        req.Method,
		URL:           res.URL,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	})
	if err != nil {
		requestsTotal.WithLabelValues(outcomeOriginUnavailable).Inc()
		return fmt.Errorf("%w: %v", ErrOriginUnavailable, err)
	}
	defer resp.Body.Close()

	log := g.logger.With(
		slog.String("file_id", req.FileID),
		slog.String("source", res.Source),
	)

	// 3. Ошибка origin — ответ как есть, без политики
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug("Origin вернул неуспешный статус", slog.Int("status", resp.StatusCode))
		g.stream(w, resp, policy.Shape{}, outcomeUpstreamError, start, log)
		return nil
	}

	shape := g.cfg.Disposition.Resolve(res.URL, resp.Header.Get("Content-Type"))

	// 4. Администратор
	if req.Admin {
		policyDecisionsTotal.WithLabelValues(decisionAdmin).Inc()
		g.stream(w, resp, shape, outcomeServed, start, log)
		return nil
	}

	// 5. Хранилище не сконфигурировано
	if !g.metadata.Enabled() {
		policyDecisionsTotal.WithLabelValues(decisionNoStore).Inc()
		g.stream(w, resp, shape, outcomeServed, start, log)
		return nil
	}

	// 6. Метаданные и правила
	rec, ok := g.metadata.Load(ctx, req.FileID)
	if !ok {
		policyDecisionsTotal.WithLabelValues(decisionStoreError).Inc()
		g.stream(w, resp, shape, outcomeServed, start, log)
		return nil
	}

	decision := g.rules.Evaluate(rec.Meta)
	policyDecisionsTotal.WithLabelValues(string(decision)).Inc()

	switch decision {
	case policy.DecisionWhitelisted:
		g.stream(w, resp, shape, outcomeServed, start, log)
		return nil

	case policy.DecisionBlock:
		target := policy.BlockRedirectURL(req.Header.Get("Referer") != "", g.cfg.BlockImageURL, req.PublicBase)
		log.Info("Файл заблокирован",
			slog.String("list_type", string(rec.Meta.ListType)),
			slog.String("label", rec.Meta.Label),
		)
		requestsTotal.WithLabelValues(outcomeRedirectBlock).Inc()
		redirect(w, target)
		return nil

	case policy.DecisionWhitelistRequired:
		requestsTotal.WithLabelValues(outcomeRedirectWhitelist).Inc()
		redirect(w, policy.WhitelistRedirectURL(req.PublicBase))
		return nil

	case policy.DecisionModerate:
		// 7. Модерация по публичному URL origin
		result := g.moderator.Classify(ctx, res.PublicURL)
		if !result.OK() {
			err := result.Err
			if err == nil {
				err = moderation.ErrNoLabel
			}
			log.Warn("Ошибка модерации, файл раздаётся без новой классификации",
				slog.String("error", err.Error()),
			)
			break
		}

		rec.Meta.Label = result.Label
		if policy.AfterModeration(result.Label) == policy.DecisionBlock {
			g.metadata.Save(ctx, req.FileID, rec)
			log.Info("Файл заблокирован модерацией", slog.String("label", result.Label))
			requestsTotal.WithLabelValues(outcomeRedirectBlock).Inc()
			redirect(w, req.PublicBase+policy.BlockPagePath)
			return nil
		}
	}

	// 8. Сохранить метаданные и раздать
	g.metadata.Save(ctx, req.FileID, rec)
	g.stream(w, resp, shape, outcomeServed, start, log)
	return nil
}

// stream передаёт ответ origin клиенту и обновляет метрики.
func (g *Gateway) stream(
	w http.ResponseWriter,
	resp *http.Response,
	shape policy.Shape,
	outcome string,
	start time.Time,
	log *slog.Logger,
) {
	written, err := writeResponse(w, resp, shape)
	if err != nil {
		// Заголовки уже отправлены, можно только залогировать
		log.Error("Ошибка streaming файла",
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		requestsTotal.WithLabelValues(outcomeStreamError).Inc()
		return
	}

	duration := time.Since(start)
	requestsTotal.WithLabelValues(outcome).Inc()
	downloadDuration.Observe(duration.Seconds())
	downloadBytesTotal.Add(float64(written))

	log.Debug("Файл передан",
		slog.Int("status", resp.StatusCode),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
	)
}
