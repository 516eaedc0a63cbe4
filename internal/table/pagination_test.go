package table

import "testing"

func TestPageCount(t *testing.T) {
	tests := []struct {
		rows, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{25, 30, 1},
		{100, 50, 2},
	}
	for _, tt := range tests {
		if got := PageCount(tt.rows, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.rows, tt.size, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	p := Pagination{Index: 5, Size: 10}.Clamp(25)
	if p.Index != 2 {
		t.Errorf("expected index 2, got %d", p.Index)
	}

	p = Pagination{Index: -3, Size: 10}.Clamp(25)
	if p.Index != 0 {
		t.Errorf("expected index 0, got %d", p.Index)
	}

	p = Pagination{Index: 4, Size: 10}.Clamp(0)
	if p.Index != 0 {
		t.Errorf("expected index 0 for empty table, got %d", p.Index)
	}
}

func TestNavigation(t *testing.T) {
	rows := 25
	p := NewPagination(10)

	if p.CanPrev() {
		t.Error("expected no previous page on first page")
	}
	if !p.CanNext(rows) {
		t.Error("expected a next page")
	}

	p = p.Next(rows).Next(rows).Next(rows)
	if p.Index != 2 {
		t.Errorf("expected next to stop at last page, got %d", p.Index)
	}
	if p.CanNext(rows) {
		t.Error("expected no next page on last page")
	}

	p = p.Prev(rows)
	if p.Index != 1 {
		t.Errorf("expected index 1, got %d", p.Index)
	}

	p = p.Last(rows)
	if p.Index != 2 {
		t.Errorf("expected last index 2, got %d", p.Index)
	}

	p = p.First()
	if p.Index != 0 {
		t.Errorf("expected first index 0, got %d", p.Index)
	}

	p = p.Prev(rows)
	if p.Index != 0 {
		t.Errorf("expected prev on first page to stay at 0, got %d", p.Index)
	}
}

func TestResizeKeepsTopRow(t *testing.T) {
	// Page 4 at size 10 starts at row 40; at size 30 that row is on page 1.
	p := Pagination{Index: 4, Size: 10}.Resize(30, 100)
	if p.Size != 30 || p.Index != 1 {
		t.Errorf("expected size 30 index 1, got %+v", p)
	}

	// Shrinking to fewer rows clamps.
	p = Pagination{Index: 9, Size: 10}.Resize(50, 60)
	if p.Index != 1 {
		t.Errorf("expected clamped index 1, got %d", p.Index)
	}
}

func TestResizeInvalidSize(t *testing.T) {
	p := Pagination{Index: 1, Size: 10}.Resize(7, 100)
	if p.Size != 10 || p.Index != 1 {
		t.Errorf("expected unchanged pagination, got %+v", p)
	}
}

func TestNewPaginationDefaultsSize(t *testing.T) {
	if p := NewPagination(0); p.Size != DefaultPageSize {
		t.Errorf("expected default size, got %d", p.Size)
	}
	if p := NewPagination(50); p.Size != 50 {
		t.Errorf("expected size 50, got %d", p.Size)
	}
}

func TestBounds(t *testing.T) {
	start, end := Pagination{Index: 2, Size: 10}.Bounds(25)
	if start != 20 || end != 25 {
		t.Errorf("expected [20,25), got [%d,%d)", start, end)
	}

	start, end = Pagination{Index: 0, Size: 10}.Bounds(0)
	if start != 0 || end != 0 {
		t.Errorf("expected empty bounds, got [%d,%d)", start, end)
	}
}
