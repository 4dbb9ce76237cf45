// Пакет originclient — HTTP-клиент для запросов к origin (telegra.ph, Telegram file storage).
// Пробрасывает метод, заголовки и тело входящего запроса, поддерживает
// streaming и Range. Поддерживает TLS с кастомным CA (IG_ORIGIN_CA_CERT_PATH).
package originclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"
)

// hopHeaders — hop-by-hop заголовки (RFC 9110, раздел 7.6.1), не пробрасываются.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// privateHeaders — заголовки клиента, которые не уходят на origin.
var privateHeaders = []string{
	"Host",
	"Authorization",
	"Cookie",
}

// Client — HTTP-клиент для origin.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиента origin.
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут всего запроса, включая чтение тела (0 — без таймаута).
func New(caCertPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		// Accept-Encoding клиента пробрасывается как есть, тело не распаковывается
		DisableCompression: true,
	}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата origin: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
		logger.Info("CA-сертификат origin добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger.With(slog.String("component", "origin_client")),
	}, nil
}

// Request — параметры запроса к origin, взятые из входящего запроса.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
	// ContentLength — длина тела (-1 — неизвестна, 0 — без тела)
	ContentLength int64
}

// Fetch выполняет запрос к origin с методом, заголовками и телом входящего запроса.
// Возвращает *http.Response — вызывающий код ОБЯЗАН закрыть resp.Body.
// Ошибка возвращается только если ответа нет совсем (DNS, соединение, таймаут);
// любой HTTP-статус origin — это успешный результат.
func (c *Client) Fetch(ctx context.Context, r Request) (*http.Response, error) {
	body := r.Body
	if body == nil || r.ContentLength == 0 {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса к origin: %w", err)
	}
	if body != http.NoBody {
		req.ContentLength = r.ContentLength
	}

	req.Header = ForwardHeaders(r.Header)

	resp, err := c.httpClient.Do(req) //nolint:gosec // G107: URL из конфигурации origin
	if err != nil {
		return nil, fmt.Errorf("запрос к origin %s: %w", req.URL.Host, err)
	}

	c.logger.Debug("Ответ origin получен",
		slog.String("method", r.Method),
		slog.String("host", req.URL.Host),
		slog.Int("status", resp.StatusCode),
	)

	// Не закрываем resp.Body — вызывающий код отвечает за это (streaming)
	return resp, nil
}

// ForwardHeaders возвращает копию заголовков запроса клиента для origin:
// без hop-by-hop и без учётных данных.
func ForwardHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		return make(http.Header)
	}
	RemoveHopHeaders(dst)
	for _, h := range privateHeaders {
		dst.Del(h)
	}
	return dst
}

// RemoveHopHeaders удаляет hop-by-hop заголовки, в том числе перечисленные в Connection.
func RemoveHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = textproto.TrimString(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("CA-сертификат %s не содержит PEM-блоков", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
