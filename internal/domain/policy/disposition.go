package policy

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
)

// Family — семейство содержимого файла.
type Family string

const (
	FamilyUnknown Family = ""
	FamilyImage   Family = "image"
	FamilyVideo   Family = "video"
	FamilyAudio   Family = "audio"
)

// Значения Content-Disposition.
const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"
)

// Имена политик Content-Disposition.
const (
	PolicyImage = "image"
	PolicyMedia = "media"
	PolicySniff = "sniff"
)

// extensionTypes — таблица расширение → MIME-тип.
var extensionTypes = map[string]string{
	// image
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"svg":  "image/svg+xml",
	// video
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"ogv":  "video/ogg",
	"ogg":  "video/ogg",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	"flv":  "video/x-flv",
	"ts":   "video/mp2t",
	// audio
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"opus": "audio/opus",
}

// Shape — изменения заголовков ответа. Пустое поле — заголовок не трогать.
type Shape struct {
	ContentType        string
	ContentDisposition string
}

// DispositionPolicy — правило выбора Content-Type и Content-Disposition.
type DispositionPolicy struct {
	name   string
	inline map[Family]bool
	// attachmentByDefault — всё, что не inline, отдаётся как attachment.
	attachmentByDefault bool
}

// NewDispositionPolicy создаёт политику по имени:
//   - image — inline только изображения
//   - media — inline изображения и видео, остальное без изменений
//   - sniff — inline изображения, видео и аудио, остальное attachment
func NewDispositionPolicy(name string) (DispositionPolicy, error) {
	switch name {
	case PolicyImage:
		return DispositionPolicy{name: name, inline: map[Family]bool{FamilyImage: true}}, nil
	case PolicyMedia:
		return DispositionPolicy{name: name, inline: map[Family]bool{FamilyImage: true, FamilyVideo: true}}, nil
	case PolicySniff:
		return DispositionPolicy{
			name:                name,
			inline:              map[Family]bool{FamilyImage: true, FamilyVideo: true, FamilyAudio: true},
			attachmentByDefault: true,
		}, nil
	default:
		return DispositionPolicy{}, fmt.Errorf("неизвестная политика disposition %q", name)
	}
}

// Name возвращает имя политики.
func (p DispositionPolicy) Name() string {
	return p.name
}

// Resolve определяет заголовки для ответа.
// resolvedURL — URL origin (расширение берётся из пути, query игнорируется),
// upstreamContentType — Content-Type ответа origin.
func (p DispositionPolicy) Resolve(resolvedURL, upstreamContentType string) Shape {
	// 1. Расширение файла
	if ct := contentTypeByExtension(resolvedURL); ct != "" && p.inline[familyOf(ct)] {
		return Shape{ContentType: ct, ContentDisposition: DispositionInline}
	}

	// 2. Content-Type origin без параметров
	if ct := stripParams(upstreamContentType); ct != "" && p.inline[familyOf(ct)] {
		return Shape{ContentType: ct, ContentDisposition: DispositionInline}
	}

	// 3. Семейство не определено
	if p.attachmentByDefault {
		return Shape{ContentDisposition: DispositionAttachment}
	}
	return Shape{}
}

// contentTypeByExtension ищет MIME-тип по расширению в пути URL.
func contentTypeByExtension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return ""
	}
	return extensionTypes[ext]
}

// stripParams убирает параметры (charset и т.п.) из Content-Type.
func stripParams(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// familyOf возвращает семейство по MIME-типу.
func familyOf(contentType string) Family {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return FamilyImage
	case strings.HasPrefix(contentType, "video/"):
		return FamilyVideo
	case strings.HasPrefix(contentType, "audio/"):
		return FamilyAudio
	default:
		return FamilyUnknown
	}
}
