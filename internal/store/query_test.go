package store

import "testing"

func TestWhereEmpty(t *testing.T) {
	var w Where
	if w.SQL() != "" {
		t.Fatalf("expected no WHERE clause, got %q", w.SQL())
	}
	if len(w.Args()) != 0 {
		t.Fatalf("expected no args")
	}
}

func TestWhereNumbersPlaceholders(t *testing.T) {
	var w Where
	w.And("name ILIKE ?", "%ann%").
		And("branch = ?", "CSE").
		And("date BETWEEN ? AND ?", "2026-01-01", "2026-01-31")
	limit := w.Bind(100)

	want := " WHERE name ILIKE $1 AND branch = $2 AND date BETWEEN $3 AND $4"
	if w.SQL() != want {
		t.Fatalf("expected %q, got %q", want, w.SQL())
	}
	if limit != "$5" {
		t.Fatalf("expected $5 for limit, got %s", limit)
	}
	if len(w.Args()) != 5 || w.Args()[1] != "CSE" || w.Args()[4] != 100 {
		t.Fatalf("unexpected args %v", w.Args())
	}
	if w.Len() != 3 {
		t.Fatalf("expected 3 predicates, got %d", w.Len())
	}
}

func TestContainsEscapesWildcards(t *testing.T) {
	if got := Contains("50%_off"); got != `%50\%\_off%` {
		t.Fatalf("unexpected pattern %q", got)
	}
}

func TestPage(t *testing.T) {
	cases := []struct {
		page, size         int
		wantLimit, wantOff int
	}{
		{1, 100, 100, 0},
		{3, 20, 20, 40},
		{0, 0, 100, 0},
		{-2, 10, 10, 0},
		{2, 10000, 500, 500},
	}
	for _, c := range cases {
		limit, offset := Page(c.page, c.size, 100, 500)
		if limit != c.wantLimit || offset != c.wantOff {
			t.Fatalf("page=%d size=%d: expected (%d,%d), got (%d,%d)", c.page, c.size, c.wantLimit, c.wantOff, limit, offset)
		}
	}
}
