package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/image-gate/internal/domain/model"
)

// postgresStore — MetadataStore поверх таблицы file_metadata.
type postgresStore struct {
	db DBTX
}

// NewPostgresStore создаёт хранилище метаданных в PostgreSQL.
func NewPostgresStore(db DBTX) MetadataStore {
	return &postgresStore{db: db}
}

// Get возвращает запись по file id или ErrNotFound.
func (s *postgresStore) Get(ctx context.Context, fileID string) (*model.StoredRecord, error) {
	query := `SELECT value, metadata FROM file_metadata WHERE file_id = $1`

	var (
		value []byte
		data  []byte
	)
	err := s.db.QueryRow(ctx, query, fileID).Scan(&value, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения метаданных: %w", err)
	}

	meta, err := decodeMetadata(data)
	if err != nil {
		return nil, err
	}

	return &model.StoredRecord{Value: value, Metadata: meta}, nil
}

// Put создаёт или перезаписывает запись (upsert).
func (s *postgresStore) Put(ctx context.Context, fileID string, value []byte, meta *model.RawMetadata) error {
	data, err := encodeMetadata(meta)
	if err != nil {
		return err
	}

	if value == nil {
		value = []byte{}
	}

	query := `
		INSERT INTO file_metadata (file_id, value, metadata, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (file_id) DO UPDATE
		SET value = EXCLUDED.value,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()`

	if _, err := s.db.Exec(ctx, query, fileID, value, string(data)); err != nil {
		return fmt.Errorf("ошибка записи метаданных: %w", err)
	}
	return nil
}
