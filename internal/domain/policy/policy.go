// Пакет policy — правила доступа к файлам Image Gate.
//
// Порядок правил фиксирован:
//   - White — раздать без модерации и блокировки
//   - Block или метка adult — redirect на заглушку (терминально)
//   - режим белого списка — redirect на страницу уведомления
//   - модерация (если сконфигурирована)
//   - раздать
//
// Блокировка конкретного файла всегда важнее глобального режима белого списка,
// а известная метка adult срабатывает до нового вызова модерации.
package policy

import "github.com/bigkaa/goartstore/image-gate/internal/domain/model"

// Decision — решение политики по одному запросу.
type Decision string

const (
	// DecisionWhitelisted — файл в белом списке: раздать без модерации и сохранения.
	DecisionWhitelisted Decision = "whitelisted"
	// DecisionServe — раздать файл (с формированием заголовков).
	DecisionServe Decision = "serve"
	// DecisionBlock — файл заблокирован, redirect на заглушку.
	DecisionBlock Decision = "block"
	// DecisionWhitelistRequired — включён режим белого списка, redirect на уведомление.
	DecisionWhitelistRequired Decision = "whitelist_required"
	// DecisionModerate — нужен вызов модерации, затем AfterModeration.
	DecisionModerate Decision = "moderate"
)

// Локальные страницы уведомлений (относительно публичного URL gate).
const (
	BlockPagePath     = "/block-img.html"
	WhitelistPagePath = "/whitelist-on.html"
)

// Rules — параметры политики, общие для всех запросов.
type Rules struct {
	// WhitelistMode — публичная раздача только whitelisted файлов.
	WhitelistMode bool
	// ModerationEnabled — сконфигурирован API-ключ модерации.
	ModerationEnabled bool
}

// Evaluate применяет правила к нормализованным метаданным.
func (r Rules) Evaluate(meta model.FileMetadata) Decision {
	if meta.IsWhitelisted() {
		return DecisionWhitelisted
	}
	if meta.IsBlocked() {
		return DecisionBlock
	}
	if r.WhitelistMode {
		return DecisionWhitelistRequired
	}
	if r.ModerationEnabled {
		return DecisionModerate
	}
	return DecisionServe
}

// AfterModeration — решение после успешной классификации.
func AfterModeration(label string) Decision {
	if label == model.LabelAdult {
		return DecisionBlock
	}
	return DecisionServe
}

// BlockRedirectURL возвращает цель redirect для заблокированного файла.
// Встраивание на чужой странице (есть Referer) получает картинку-заглушку,
// прямой переход — локальную страницу.
func BlockRedirectURL(hasReferer bool, blockImageURL, publicBase string) string {
	if hasReferer {
		return blockImageURL
	}
	return publicBase + BlockPagePath
}

// WhitelistRedirectURL возвращает цель redirect в режиме белого списка.
func WhitelistRedirectURL(publicBase string) string {
	return publicBase + WhitelistPagePath
}
