package models

import "testing"

func TestSortLabelCoverage(t *testing.T) {
	known := []SortKey{
		SortCreatedDesc, SortCreatedAsc, SortAuthorAsc,
		SortAuthorDesc, SortTitleAsc, SortTitleDesc,
	}
	for _, k := range known {
		if k.Label() == "" {
			t.Errorf("SortKey %q has empty label", k)
		}
		if !k.Valid() {
			t.Errorf("SortKey %q reported invalid", k)
		}
	}
}

func TestSortLabelUnknownFallback(t *testing.T) {
	got := SortKey("price_desc").Label()
	if got != "price_desc" {
		t.Errorf("unknown sort label = %q, want %q", got, "price_desc")
	}
	if SortKey("price_desc").Valid() {
		t.Error("unknown sort key reported valid")
	}
}

func TestValidPageSize(t *testing.T) {
	for _, n := range PageSizes {
		if !ValidPageSize(n) {
			t.Errorf("ValidPageSize(%d) = false, want true", n)
		}
	}
	if ValidPageSize(7) {
		t.Error("ValidPageSize(7) = true, want false")
	}
}

func TestListQueryState_Paging(t *testing.T) {
	tests := []struct {
		name     string
		state    ListQueryState
		items    int
		wantPrev bool
		wantNext bool
	}{
		{"first of three", ListQueryState{Page: 1, PageSize: 10, TotalPages: 3}, 10, false, true},
		{"last of three", ListQueryState{Page: 3, PageSize: 10, TotalPages: 3}, 4, true, false},
		{"unknown total full page", ListQueryState{Page: 2, PageSize: 10}, 10, true, true},
		{"unknown total short page", ListQueryState{Page: 2, PageSize: 10}, 3, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.HasPrev(); got != tt.wantPrev {
				t.Errorf("HasPrev() = %v, want %v", got, tt.wantPrev)
			}
			if got := tt.state.HasNext(tt.items); got != tt.wantNext {
				t.Errorf("HasNext(%d) = %v, want %v", tt.items, got, tt.wantNext)
			}
		})
	}
}
