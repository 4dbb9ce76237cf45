// Пакет service — бизнес-логика Image Gate.
// LookupCache — LRU-кэш путей файлов Telegram (file_id → file_path) с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LookupCache — LRU-кэш результатов getFile с автоматическим TTL.
// Каждый экземпляр gate имеет собственный in-memory кэш.
// nil-кэш допустим: все операции — no-op.
type LookupCache struct {
	cache *expirable.LRU[string, string]
}

// NewLookupCache создаёт LRU-кэш с указанным максимальным размером и TTL.
// ttl == 0 — кэш отключён (возвращается nil).
func NewLookupCache(maxSize int, ttl time.Duration) *LookupCache {
	if ttl <= 0 {
		return nil
	}
	return &LookupCache{cache: expirable.NewLRU[string, string](maxSize, nil, ttl)}
}

// Get возвращает путь файла по file_id.
func (c *LookupCache) Get(fileID string) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.cache.Get(fileID)
}

// Set добавляет или обновляет запись в кэше.
func (c *LookupCache) Set(fileID, filePath string) {
	if c == nil {
		return
	}
	c.cache.Add(fileID, filePath)
}

// Len возвращает количество записей в кэше.
func (c *LookupCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
