package normalize

import (
	"math"

	"github.com/HerbHall/libradesk/pkg/models"
)

// ExtractList finds the item array inside an arbitrary payload. The first
// matching shape wins: a bare array, data, data.data, data.items, items,
// then any extraKeys at the top level. Unknown shapes yield an empty list.
// The returned map is the raw metadata object, or nil.
func ExtractList(payload any, extraKeys ...string) ([]any, map[string]any) {
	if arr, ok := payload.([]any); ok {
		return arr, nil
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return []any{}, nil
	}

	meta := asObject(obj["meta"])
	data := obj["data"]
	if arr, ok := data.([]any); ok {
		return arr, meta
	}
	if inner := asObject(data); inner != nil {
		if meta == nil {
			meta = asObject(inner["meta"])
		}
		if arr, ok := inner["data"].([]any); ok {
			if meta == nil {
				// Laravel paginators put total/current_page beside data.
				meta = inner
			}
			return arr, meta
		}
		if arr, ok := inner["items"].([]any); ok {
			return arr, meta
		}
	}
	if arr, ok := obj["items"].([]any); ok {
		return arr, meta
	}
	for _, key := range extraKeys {
		if arr, ok := obj[key].([]any); ok {
			return arr, meta
		}
	}
	return []any{}, meta
}

// Single unwraps a single-entity response: data.data, then data, then the
// payload itself. Non-object payloads yield nil.
func Single(payload any) map[string]any {
	obj := asObject(payload)
	if obj == nil {
		return nil
	}
	if inner := asObject(obj["data"]); inner != nil {
		if nested := asObject(inner["data"]); nested != nil {
			return nested
		}
		return inner
	}
	return obj
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// resolveMeta fills every metadata field, defaulting to the item count and
// the page/perPage that were requested.
func (n *Normalizer) resolveMeta(raw map[string]any, count, page, perPage int) models.ListMeta {
	if perPage <= 0 {
		perPage = models.DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	m := models.ListMeta{Total: count, Page: page, PerPage: perPage}
	if raw != nil {
		if v, ok := n.integer(raw, "meta", "total"); ok && v >= 0 {
			m.Total = int(v)
		}
		if v, ok := n.integer(raw, "meta", "page"); ok && v >= 1 {
			m.Page = int(v)
		}
		if v, ok := n.integer(raw, "meta", "per_page"); ok && v >= 1 {
			m.PerPage = int(v)
		}
		if v, ok := n.integer(raw, "meta", "total_pages"); ok && v >= 1 {
			m.TotalPages = int(v)
		}
	}
	if m.TotalPages == 0 {
		m.TotalPages = max(1, int(math.Ceil(float64(m.Total)/float64(perPage))))
	}
	return m
}
