package models

// SortKey orders the book list on the server.
type SortKey string

const (
	SortCreatedDesc SortKey = "created_at_desc"
	SortCreatedAsc  SortKey = "created_at_asc"
	SortAuthorAsc   SortKey = "author_asc"
	SortAuthorDesc  SortKey = "author_desc"
	SortTitleAsc    SortKey = "book_title_asc"
	SortTitleDesc   SortKey = "book_title_desc"
)

// DefaultSort is the ordering a fresh list view starts with.
const DefaultSort = SortCreatedDesc

// SortLabel maps a SortKey to the label shown in sort pickers.
var SortLabel = map[SortKey]string{
	SortCreatedDesc: "Newest",
	SortCreatedAsc:  "Oldest",
	SortAuthorAsc:   "Author (A-Z)",
	SortAuthorDesc:  "Author (Z-A)",
	SortTitleAsc:    "Title (A-Z)",
	SortTitleDesc:   "Title (Z-A)",
}

// Label returns the picker label for k, or the raw key if unknown.
func (k SortKey) Label() string {
	if l, ok := SortLabel[k]; ok {
		return l
	}
	return string(k)
}

// Valid reports whether k is one of the enumerated sort keys.
func (k SortKey) Valid() bool {
	_, ok := SortLabel[k]
	return ok
}

// PageSizes is the fixed set of page sizes a list view offers.
var PageSizes = []int{5, 10, 25, 50}

// DefaultPageSize is the page size a fresh list view starts with.
const DefaultPageSize = 10

// ValidPageSize reports whether n is one of PageSizes.
func ValidPageSize(n int) bool {
	for _, s := range PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

// ListMeta is pagination metadata reported by the server (or defaulted).
type ListMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// ListQueryState is the query a list view currently shows. Page is reset
// to 1 whenever Search, PageSize or Sort change.
type ListQueryState struct {
	Page       int     `json:"page"`
	PageSize   int     `json:"per_page"`
	Sort       SortKey `json:"sort"`
	Search     string  `json:"search"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
}

// NewListQueryState returns the initial state for a list view.
func NewListQueryState() ListQueryState {
	return ListQueryState{
		Page:     1,
		PageSize: DefaultPageSize,
		Sort:     DefaultSort,
	}
}

// HasPrev reports whether a previous page exists.
func (s ListQueryState) HasPrev() bool { return s.Page > 1 }

// HasNext reports whether a next page exists. With no known page count it
// falls back to whether the current page came back full.
func (s ListQueryState) HasNext(itemsOnPage int) bool {
	if s.TotalPages > 0 {
		return s.Page < s.TotalPages
	}
	return itemsOnPage >= s.PageSize
}
