// Пакет model — доменные модели Image Gate.
// FileMetadata — метаданные файла, хранимые в KV-хранилище по file id.
package model

import "time"

// ListType — ручная классификация файла, приоритетнее автоматической модерации.
type ListType string

const (
	// ListNone — файл не классифицирован вручную.
	ListNone ListType = "None"
	// ListWhite — файл в белом списке: без модерации и блокировки.
	ListWhite ListType = "White"
	// ListBlock — файл в чёрном списке: никогда не раздаётся.
	ListBlock ListType = "Block"
)

const (
	// LabelNone — метка по умолчанию (модерация не выполнялась).
	LabelNone = "None"
	// LabelAdult — метка модерации, блокирующая файл.
	LabelAdult = "adult"
)

// FileMetadata — нормализованные метаданные файла.
// JSON-имена совместимы с уже накопленными записями KV.
type FileMetadata struct {
	// ListType — ручная классификация (None, White, Block)
	ListType ListType `json:"ListType"`
	// Label — метка модерации ("None" по умолчанию)
	Label string `json:"Label"`
	// TimeStamp — время первого обращения, unix ms
	TimeStamp int64 `json:"TimeStamp"`
	// Liked — пользовательский флаг, gate его не меняет
	Liked bool `json:"liked"`
	// FileName — отображаемое имя (по умолчанию file id)
	FileName string `json:"fileName"`
	// FileSize — размер в байтах, gate его не вычисляет
	FileSize int64 `json:"fileSize"`
}

// RawMetadata — метаданные в том виде, в каком они лежат в хранилище.
// Любое поле может отсутствовать (частичная запись).
type RawMetadata struct {
	ListType  *string `json:"ListType,omitempty"`
	Label     *string `json:"Label,omitempty"`
	TimeStamp *int64  `json:"TimeStamp,omitempty"`
	Liked     *bool   `json:"liked,omitempty"`
	FileName  *string `json:"fileName,omitempty"`
	FileSize  *int64  `json:"fileSize,omitempty"`
}

// StoredRecord — пара значение + метаданные из KV.
// Value не используется gate, но сохраняется при перезаписи.
type StoredRecord struct {
	Value    []byte
	Metadata *RawMetadata
}

// DefaultMetadata возвращает запись по умолчанию для нового file id.
func DefaultMetadata(fileID string, now time.Time) FileMetadata {
	return FileMetadata{
		ListType:  ListNone,
		Label:     LabelNone,
		TimeStamp: now.UnixMilli(),
		Liked:     false,
		FileName:  fileID,
		FileSize:  0,
	}
}

// Merge дополняет частичную запись значениями по умолчанию.
// Каждое поле откатывается к умолчанию независимо от остальных:
// пустая строка и нулевое число считаются отсутствующими, false у Liked — нет.
func Merge(raw *RawMetadata, fileID string, now time.Time) FileMetadata {
	m := DefaultMetadata(fileID, now)
	if raw == nil {
		return m
	}

	if raw.ListType != nil && *raw.ListType != "" {
		m.ListType = ListType(*raw.ListType)
	}
	if raw.Label != nil && *raw.Label != "" {
		m.Label = *raw.Label
	}
	if raw.TimeStamp != nil && *raw.TimeStamp != 0 {
		m.TimeStamp = *raw.TimeStamp
	}
	if raw.Liked != nil {
		m.Liked = *raw.Liked
	}
	if raw.FileName != nil && *raw.FileName != "" {
		m.FileName = *raw.FileName
	}
	if raw.FileSize != nil && *raw.FileSize != 0 {
		m.FileSize = *raw.FileSize
	}

	return m
}

// Raw возвращает полную (все поля заданы) запись для сохранения.
func (m FileMetadata) Raw() *RawMetadata {
	listType := string(m.ListType)
	return &RawMetadata{
		ListType:  &listType,
		Label:     &m.Label,
		TimeStamp: &m.TimeStamp,
		Liked:     &m.Liked,
		FileName:  &m.FileName,
		FileSize:  &m.FileSize,
	}
}

// IsBlocked — файл в чёрном списке или помечен модерацией как adult.
func (m FileMetadata) IsBlocked() bool {
	return m.ListType == ListBlock || m.Label == LabelAdult
}

// IsWhitelisted — файл в белом списке.
func (m FileMetadata) IsWhitelisted() bool {
	return m.ListType == ListWhite
}
