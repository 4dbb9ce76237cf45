// metadata.go — доступ к метаданным файлов: чтение, ленивое создание, сохранение.
// Хранилище опционально. Без хранилища и при его ошибках политика работает
// на метаданных по умолчанию, файл раздаётся (fail-open).
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/image-gate/internal/domain/model"
	"github.com/bigkaa/goartstore/image-gate/internal/repository"
)

// MetadataRecord — нормализованные метаданные и значение записи.
type MetadataRecord struct {
	Meta model.FileMetadata
	// Value — значение KV-записи, сохраняется без изменений
	Value []byte
}

// MetadataAccessor — операции над метаданными файлов.
type MetadataAccessor struct {
	store  repository.MetadataStore
	now    func() time.Time
	logger *slog.Logger
}

// NewMetadataAccessor создаёт accessor. store == nil — хранилище не сконфигурировано.
func NewMetadataAccessor(store repository.MetadataStore, logger *slog.Logger) *MetadataAccessor {
	return &MetadataAccessor{
		store:  store,
		now:    time.Now,
		logger: logger.With(slog.String("component", "metadata")),
	}
}

// Enabled — хранилище сконфигурировано.
func (a *MetadataAccessor) Enabled() bool {
	return a.store != nil
}

// Load читает и нормализует метаданные файла.
// Отсутствующая запись создаётся со значениями по умолчанию и сразу сохраняется.
// ok == false — хранилище недоступно для этого запроса.
func (a *MetadataAccessor) Load(ctx context.Context, fileID string) (MetadataRecord, bool) {
	if a.store == nil {
		return MetadataRecord{Meta: model.DefaultMetadata(fileID, a.now())}, false
	}

	rec, err := a.store.Get(ctx, fileID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return a.init(ctx, fileID, nil), true
	case err != nil:
		a.logger.Warn("Хранилище метаданных недоступно, файл раздаётся без политики",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return MetadataRecord{Meta: model.DefaultMetadata(fileID, a.now())}, false
	case rec.Metadata == nil:
		// Запись есть, метаданных нет — создаём, значение сохраняем
		return a.init(ctx, fileID, rec.Value), true
	}

	return MetadataRecord{
		Meta:  model.Merge(rec.Metadata, fileID, a.now()),
		Value: rec.Value,
	}, true
}

// init создаёт запись по умолчанию и сохраняет её.
// Ошибка записи не прерывает запрос: политика продолжает на значениях по умолчанию.
func (a *MetadataAccessor) init(ctx context.Context, fileID string, value []byte) MetadataRecord {
	rec := MetadataRecord{
		Meta:  model.DefaultMetadata(fileID, a.now()),
		Value: value,
	}

	if err := a.store.Put(ctx, fileID, rec.Value, rec.Meta.Raw()); err != nil {
		a.logger.Warn("Ошибка создания записи метаданных",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return rec
	}

	a.logger.Debug("Создана запись метаданных",
		slog.String("file_id", fileID),
	)
	return rec
}

// Save сохраняет метаданные, сохраняя значение записи.
func (a *MetadataAccessor) Save(ctx context.Context, fileID string, rec MetadataRecord) {
	if a.store == nil {
		return
	}

	if err := a.store.Put(ctx, fileID, rec.Value, rec.Meta.Raw()); err != nil {
		a.logger.Warn("Ошибка сохранения метаданных",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}
}
