package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	p := FromContext(c)

	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.PageSize != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, p.PageSize)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?page=3&page_size=25", nil), httptest.NewRecorder())

	p := FromContext(c)

	if p.Page != 3 || p.PageSize != 25 {
		t.Errorf("expected page 3 size 25, got %+v", p)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"/?page_size=500", Params{Page: 1, PageSize: MaxPageSize}},
		{"/?page=-2&page_size=-1", Params{Page: 1, PageSize: DefaultPageSize}},
		{"/?page=abc&page_size=xyz", Params{Page: 1, PageSize: DefaultPageSize}},
	}
	for _, tt := range tests {
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.query, nil), httptest.NewRecorder())
		if got := FromContext(c); got != tt.want {
			t.Errorf("FromContext(%s) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestSlice_TwentyThreeAtTen(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	wantSizes := []int{10, 10, 3}
	for i, want := range wantSizes {
		page := Slice(items, Params{Page: i + 1, PageSize: 10})
		if len(page.Items) != want {
			t.Errorf("page %d: expected %d items, got %d", i+1, want, len(page.Items))
		}
		if page.TotalPages != 3 {
			t.Errorf("page %d: expected 3 total pages, got %d", i+1, page.TotalPages)
		}
		if page.Total != 23 {
			t.Errorf("page %d: expected total 23, got %d", i+1, page.Total)
		}
		if page.Items[0] != i*10 {
			t.Errorf("page %d: expected first item %d, got %d", i+1, i*10, page.Items[0])
		}
	}

	if Slice(items, Params{Page: 2, PageSize: 10}).HasNext() != true {
		t.Error("expected page 2 to have a next page")
	}
	if Slice(items, Params{Page: 3, PageSize: 10}).HasNext() {
		t.Error("expected page 3 to be last")
	}
}

func TestSlice_PastEnd(t *testing.T) {
	page := Slice([]string{"a", "b"}, Params{Page: 5, PageSize: 10})
	if page.Items == nil || len(page.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %v", page.Items)
	}
	if page.TotalPages != 1 {
		t.Errorf("expected 1 total page, got %d", page.TotalPages)
	}
}

func TestSlice_Empty(t *testing.T) {
	page := Slice([]string(nil), Params{})
	if page.TotalPages != 0 || page.Total != 0 {
		t.Errorf("expected zero pages, got %+v", page.Info)
	}
	if page.Page != 1 || page.PageSize != DefaultPageSize {
		t.Errorf("expected normalized params, got %+v", page.Info)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct{ total, size, want int }{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{23, 10, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}
