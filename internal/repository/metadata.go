package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bigkaa/goartstore/image-gate/internal/domain/model"
)

// MetadataStore — KV-хранилище метаданных файлов по file id.
// Операции не атомарны друг относительно друга: при параллельных
// запросах к одному file id выигрывает последняя запись.
type MetadataStore interface {
	// Get возвращает значение и метаданные или ErrNotFound.
	Get(ctx context.Context, fileID string) (*model.StoredRecord, error)
	// Put записывает значение и метаданные (создание или перезапись).
	Put(ctx context.Context, fileID string, value []byte, meta *model.RawMetadata) error
}

// encodeMetadata сериализует метаданные в JSON.
// nil сохраняется как пустой объект.
func encodeMetadata(meta *model.RawMetadata) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	return data, nil
}

// decodeMetadata разбирает JSON метаданных.
// Пустые данные — запись без метаданных (nil).
// Поля разбираются независимо: поле с неверным типом отбрасывается
// и при слиянии заменяется значением по умолчанию.
func decodeMetadata(data []byte) (*model.RawMetadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("ошибка разбора метаданных: %w", err)
	}

	var meta model.RawMetadata
	decodeField(fields, "ListType", &meta.ListType)
	decodeField(fields, "Label", &meta.Label)
	decodeField(fields, "TimeStamp", &meta.TimeStamp)
	decodeField(fields, "liked", &meta.Liked)
	decodeField(fields, "fileName", &meta.FileName)
	decodeField(fields, "fileSize", &meta.FileSize)
	return &meta, nil
}

// decodeField разбирает одно поле; отсутствующее, null или с неверным типом остаётся nil.
func decodeField[T any](fields map[string]json.RawMessage, key string, dst **T) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*dst = &v
}
