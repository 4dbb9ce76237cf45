// Пакет tgclient — HTTP-клиент Telegram Bot API.
// Разрешает file_id в путь файла (getFile) и строит URL скачивания.
// Токен бота входит в URL, поэтому он не попадает ни в логи, ни в тексты ошибок.
package tgclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrFileNotFound — Telegram не вернул путь файла для file_id.
var ErrFileNotFound = errors.New("файл не найден в Telegram")

// maxErrorBody — сколько байт тела ответа читать для текста ошибки.
const maxErrorBody = 1024

// getFileResponse — ответ метода getFile.
type getFileResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      *struct {
		FileID   string `json:"file_id"`
		FilePath string `json:"file_path"`
		FileSize int64  `json:"file_size"`
	} `json:"result"`
}

// Client — HTTP-клиент Telegram Bot API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string //nolint:gosec // G101: поле структуры, секрет приходит из конфигурации
	logger     *slog.Logger
}

// New создаёт клиента Telegram Bot API.
// apiURL — базовый URL (например, https://api.telegram.org).
// timeout — таймаут HTTP-запросов (IG_LOOKUP_TIMEOUT).
func New(apiURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		logger:     logger.With(slog.String("component", "telegram_client")),
	}
}

// GetFilePath возвращает путь файла по file_id.
// GET {api}/bot{token}/getFile?file_id={id}
func (c *Client) GetFilePath(ctx context.Context, fileID string) (string, error) {
	reqURL := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", c.apiURL, c.token, url.QueryEscape(fileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("создание запроса getFile: %w", redact(err))
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G107: URL из конфигурации
	if err != nil {
		return "", fmt.Errorf("запрос getFile: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr getFileResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Description != "" {
			// 400 Bad Request: invalid file_id — файла нет, это не сбой API
			if resp.StatusCode == http.StatusBadRequest {
				return "", fmt.Errorf("%w: %s", ErrFileNotFound, apiErr.Description)
			}
			return "", fmt.Errorf("telegram вернул статус %d: %s", resp.StatusCode, apiErr.Description)
		}
		return "", fmt.Errorf("telegram вернул статус %d", resp.StatusCode)
	}

	var data getFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("декодирование ответа getFile: %w", err)
	}

	if !data.OK || data.Result == nil || data.Result.FilePath == "" {
		return "", ErrFileNotFound
	}

	c.logger.Debug("Путь файла получен",
		slog.String("file_id", fileID),
		slog.String("file_path", data.Result.FilePath),
	)

	return data.Result.FilePath, nil
}

// FileURL возвращает URL скачивания файла по его пути.
// {api}/file/bot{token}/{file_path}
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.apiURL, c.token, strings.TrimLeft(filePath, "/"))
}

// redact убирает URL запроса (с токеном бота) из ошибки net/http.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
