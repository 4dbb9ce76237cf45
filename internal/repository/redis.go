package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/goartstore/image-gate/internal/domain/model"
)

// Поля redis hash записи.
const (
	redisFieldValue    = "value"
	redisFieldMetadata = "metadata"
)

// redisStore — MetadataStore поверх Redis.
// Каждая запись — hash {prefix}{file id} с полями value и metadata (JSON).
type redisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore создаёт хранилище метаданных в Redis.
func NewRedisStore(client redis.Cmdable, prefix string) MetadataStore {
	return &redisStore{client: client, prefix: prefix}
}

// Get возвращает запись по file id или ErrNotFound.
func (s *redisStore) Get(ctx context.Context, fileID string) (*model.StoredRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(fileID)).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных из Redis: %w", err)
	}
	// HGETALL для несуществующего ключа возвращает пустой hash
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	meta, err := decodeMetadata([]byte(fields[redisFieldMetadata]))
	if err != nil {
		return nil, err
	}

	return &model.StoredRecord{
		Value:    []byte(fields[redisFieldValue]),
		Metadata: meta,
	}, nil
}

// Put записывает значение и метаданные.
func (s *redisStore) Put(ctx context.Context, fileID string, value []byte, meta *model.RawMetadata) error {
	data, err := encodeMetadata(meta)
	if err != nil {
		return err
	}

	if value == nil {
		value = []byte{}
	}

	if err := s.client.HSet(ctx, s.key(fileID),
		redisFieldValue, value,
		redisFieldMetadata, data,
	).Err(); err != nil {
		return fmt.Errorf("ошибка записи метаданных в Redis: %w", err)
	}
	return nil
}

// key возвращает ключ Redis для file id.
func (s *redisStore) key(fileID string) string {
	return s.prefix + fileID
}
