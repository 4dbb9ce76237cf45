// shaper.go — формирование ответа клиенту из ответа origin.
// Тело передаётся потоком без изменений, статус сохраняется (в том числе 206),
// меняются только Content-Type и Content-Disposition.
package service

import (
	"io"
	"net/http"

	"github.com/bigkaa/goartstore/image-gate/internal/domain/policy"
	"github.com/bigkaa/goartstore/image-gate/internal/originclient"
)

// writeResponse копирует ответ origin клиенту, применяя shape.
// Пустой Shape — заголовки как у origin.
// Возвращает количество переданных байт тела.
func writeResponse(w http.ResponseWriter, resp *http.Response, shape policy.Shape) (int64, error) {
	copyHeaders(w.Header(), resp.Header)

	if shape.ContentType != "" {
		w.Header().Set("Content-Type", shape.ContentType)
	}
	if shape.ContentDisposition != "" {
		w.Header().Set("Content-Disposition", shape.ContentDisposition)
	}

	w.WriteHeader(resp.StatusCode)
	return io.Copy(w, resp.Body)
}

// copyHeaders копирует заголовки ответа origin без hop-by-hop.
func copyHeaders(dst, src http.Header) {
	h := src.Clone()
	originclient.RemoveHopHeaders(h)
	for name, values := range h {
		dst[name] = values
	}
}

// redirect отвечает 302 на target без тела.
func redirect(w http.ResponseWriter, target string) {
	w.Header().Set("Location", target)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusFound)
}
