package model

import (
	"encoding/json"
	"testing"
	"time"
)

// TestMerge_Nil проверяет запись по умолчанию при отсутствии метаданных.
func TestMerge_Nil(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	m := Merge(nil, "abc.jpg", now)

	want := FileMetadata{
		ListType:  ListNone,
		Label:     LabelNone,
		TimeStamp: 1700000000000,
		Liked:     false,
		FileName:  "abc.jpg",
		FileSize:  0,
	}
	if m != want {
		t.Errorf("Merge(nil) = %+v, ожидался %+v", m, want)
	}
}

// TestMerge_Partial проверяет независимый откат каждого поля к умолчанию.
func TestMerge_Partial(t *testing.T) {
	now := time.UnixMilli(2000)

	var raw RawMetadata
	if err := json.Unmarshal([]byte(`{"ListType":"White","liked":true,"fileSize":42}`), &raw); err != nil {
		t.Fatalf("Unmarshal ошибка: %v", err)
	}

	m := Merge(&raw, "id-1", now)

	if m.ListType != ListWhite {
		t.Errorf("ListType = %q, ожидался White", m.ListType)
	}
	if m.Label != LabelNone {
		t.Errorf("Label = %q, ожидался None", m.Label)
	}
	if m.TimeStamp != 2000 {
		t.Errorf("TimeStamp = %d, ожидался 2000", m.TimeStamp)
	}
	if !m.Liked {
		t.Error("Liked должен сохраниться как true")
	}
	if m.FileName != "id-1" {
		t.Errorf("FileName = %q, ожидался id-1", m.FileName)
	}
	if m.FileSize != 42 {
		t.Errorf("FileSize = %d, ожидался 42", m.FileSize)
	}
}

// TestMerge_EmptyValues проверяет, что пустые строки и нули заменяются умолчаниями.
func TestMerge_EmptyValues(t *testing.T) {
	var raw RawMetadata
	data := `{"ListType":"","Label":"","TimeStamp":0,"liked":false,"fileName":"","fileSize":0}`
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		t.Fatalf("Unmarshal ошибка: %v", err)
	}

	m := Merge(&raw, "id-2", time.UnixMilli(5))
	if m != DefaultMetadata("id-2", time.UnixMilli(5)) {
		t.Errorf("Merge = %+v, ожидались значения по умолчанию", m)
	}
}

// TestRaw_RoundTrip проверяет, что сохранённая запись читается без потерь.
func TestRaw_RoundTrip(t *testing.T) {
	orig := FileMetadata{
		ListType:  ListBlock,
		Label:     LabelAdult,
		TimeStamp: 123,
		Liked:     true,
		FileName:  "cat.png",
		FileSize:  1024,
	}

	data, err := json.Marshal(orig.Raw())
	if err != nil {
		t.Fatalf("Marshal ошибка: %v", err)
	}

	var raw RawMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal ошибка: %v", err)
	}

	if got := Merge(&raw, "other", time.UnixMilli(999)); got != orig {
		t.Errorf("Merge(Raw()) = %+v, ожидался %+v", got, orig)
	}
}

// TestFileMetadata_Flags проверяет предикаты блокировки и белого списка.
func TestFileMetadata_Flags(t *testing.T) {
	tests := []struct {
		name      string
		meta      FileMetadata
		blocked   bool
		whitelist bool
	}{
		{"по умолчанию", FileMetadata{ListType: ListNone, Label: LabelNone}, false, false},
		{"чёрный список", FileMetadata{ListType: ListBlock, Label: LabelNone}, true, false},
		{"adult", FileMetadata{ListType: ListNone, Label: LabelAdult}, true, false},
		{"белый список", FileMetadata{ListType: ListWhite, Label: LabelNone}, false, true},
		{"белый список + adult", FileMetadata{ListType: ListWhite, Label: LabelAdult}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meta.IsBlocked(); got != tt.blocked {
				t.Errorf("IsBlocked = %v, ожидался %v", got, tt.blocked)
			}
			if got := tt.meta.IsWhitelisted(); got != tt.whitelist {
				t.Errorf("IsWhitelisted = %v, ожидался %v", got, tt.whitelist)
			}
		})
	}
}
