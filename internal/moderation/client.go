// Пакет moderation — клиент внешнего API модерации изображений (moderatecontent.com).
// Классифицирует файл по публичному URL и возвращает метку (everyone, teen, adult).
// Сбой модерации не ошибка запроса: результат несёт ошибку как значение,
// решение продолжать принимает вызывающий код.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/bigkaa/goartstore/image-gate/internal/domain/model"
)

// Ошибки модерации.
var (
	// ErrThrottled — превышен локальный лимит запросов к API.
	ErrThrottled = errors.New("превышен лимит запросов к API модерации")
	// ErrNoLabel — API не вернул метку.
	ErrNoLabel = errors.New("API модерации не вернул метку")
)

// Prometheus-метрики модерации.
var moderationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ig_moderation_total",
	Help: "Количество вызовов API модерации (по результату).",
}, []string{"result"})

// Result — результат классификации: метка или ошибка.
type Result struct {
	Label string
	Err   error
}

// OK — классификация получена.
func (r Result) OK() bool {
	return r.Err == nil && r.Label != ""
}

// apiResponse — ответ API модерации.
type apiResponse struct {
	RatingLabel string `json:"rating_label"`
	ErrorCode   int    `json:"error_code"`
	Error       string `json:"error"`
}

// Client — клиент API модерации.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string //nolint:gosec // G101: поле структуры, ключ приходит из конфигурации
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New создаёт клиента модерации.
// rps — лимит запросов в секунду (0 — без лимита), burst — размер всплеска.
func New(baseURL, apiKey string, timeout time.Duration, rps float64, burst int, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "moderation_client")),
	}
}

// Enabled — модерация сконфигурирована (задан API-ключ).
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Classify запрашивает классификацию файла по публичному URL.
// GET {baseURL}?key={key}&url={publicURL}
func (c *Client) Classify(ctx context.Context, publicURL string) Result {
	if c.limiter != nil && !c.limiter.Allow() {
		moderationTotal.WithLabelValues("throttled").Inc()
		return Result{Err: ErrThrottled}
	}

	label, err := c.classify(ctx, publicURL)
	switch {
	case err == nil:
		moderationTotal.WithLabelValues("ok").Inc()
		if label == model.LabelAdult {
			moderationTotal.WithLabelValues("adult").Inc()
		}
	case errors.Is(err, ErrNoLabel):
		moderationTotal.WithLabelValues("no_label").Inc()
	default:
		moderationTotal.WithLabelValues("error").Inc()
	}

	return Result{Label: label, Err: err}
}

func (c *Client) classify(ctx context.Context, publicURL string) (string, error) {
	reqURL, err := c.requestURL(publicURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("создание запроса модерации: %w", redact(err))
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G107: URL из конфигурации
	if err != nil {
		return "", fmt.Errorf("запрос модерации: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API модерации вернул статус %d", resp.StatusCode)
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("декодирование ответа модерации: %w", err)
	}

	if data.ErrorCode != 0 {
		return "", fmt.Errorf("API модерации вернул ошибку %d: %s", data.ErrorCode, data.Error)
	}
	if data.RatingLabel == "" {
		return "", ErrNoLabel
	}

	c.logger.Debug("Файл классифицирован",
		slog.String("url", publicURL),
		slog.String("label", data.RatingLabel),
	)

	return data.RatingLabel, nil
}

// requestURL добавляет key и url к базовому URL API.
func (c *Client) requestURL(publicURL string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("некорректный URL API модерации: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	q.Set("url", publicURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact убирает URL запроса (с API-ключом) из ошибки net/http.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
