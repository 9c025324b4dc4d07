package mockapi

import (
	"fmt"
	"math"
	"strings"
)

// Envelope is one of the list response shapes the real backend has been
// seen to return.
type Envelope string

const (
	EnvelopeArray     Envelope = "array"      // [...]
	EnvelopeData      Envelope = "data"       // {"data": [...], "meta": {...}}
	EnvelopePaginator Envelope = "paginator"  // {"data": {"data": [...], "current_page": ...}}
	EnvelopeDataItems Envelope = "data.items" // {"data": {"items": [...], "meta": {...}}}
	EnvelopeItems     Envelope = "items"      // {"items": [...], "meta": {...}}
)

// AllEnvelopes is the default rotation.
var AllEnvelopes = []Envelope{EnvelopeData, EnvelopePaginator, EnvelopeArray, EnvelopeDataItems, EnvelopeItems}

// ParseEnvelopes reads a comma-separated list such as "data,paginator".
func ParseEnvelopes(s string) ([]Envelope, error) {
	if strings.TrimSpace(s) == "" || s == "all" {
		return AllEnvelopes, nil
	}
	var out []Envelope
	for _, part := range strings.Split(s, ",") {
		e := Envelope(strings.TrimSpace(part))
		switch e {
		case EnvelopeArray, EnvelopeData, EnvelopePaginator, EnvelopeDataItems, EnvelopeItems:
			out = append(out, e)
		default:
			return nil, fmt.Errorf("unknown envelope %q", part)
		}
	}
	return out, nil
}

type pageInfo struct {
	page, perPage, total int
}

func (p pageInfo) lastPage() int {
	if p.perPage <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(float64(p.total)/float64(p.perPage))))
}

// wrap renders items in env. data.items uses camelCase meta keys, which
// the real backend's newer endpoints do.
func wrap(env Envelope, items []any, p pageInfo) any {
	switch env {
	case EnvelopeArray:
		return items
	case EnvelopePaginator:
		return map[string]any{"data": map[string]any{
			"data":         items,
			"current_page": p.page,
			"last_page":    p.lastPage(),
			"per_page":     p.perPage,
			"total":        p.total,
		}}
	case EnvelopeDataItems:
		return map[string]any{"data": map[string]any{
			"items": items,
			"meta": map[string]any{
				"page":       p.page,
				"perPage":    p.perPage,
				"totalPages": p.lastPage(),
				"total":      p.total,
			},
		}}
	case EnvelopeItems:
		return map[string]any{"items": items, "meta": metaOf(p)}
	default:
		return map[string]any{"data": items, "meta": metaOf(p)}
	}
}

func metaOf(p pageInfo) map[string]any {
	return map[string]any{
		"page":        p.page,
		"per_page":    p.perPage,
		"total_pages": p.lastPage(),
		"total":       p.total,
	}
}
