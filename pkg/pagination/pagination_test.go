package pagination

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 10, 1, 9, 30, 0, 123, time.UTC), ID: uuid.New()}

	got, err := Params{Cursor: want.Encode()}.After()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAfterEmptyCursorIsFirstPage(t *testing.T) {
	got, err := Params{Cursor: "  "}.After()
	if err != nil || got != nil {
		t.Fatalf("expected first page, got %+v %v", got, err)
	}
}

func TestAfterRejectsGarbage(t *testing.T) {
	for _, value := range []string{"%%%", "bm9waXBl", Cursor{}.Encode()} {
		if _, err := (Params{Cursor: value}).After(); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("value %q: %v", value, err)
		}
	}
}

func TestSizeAndFetch(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -5: DefaultLimit, 7: 7, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := (Params{Limit: in}).Size(); got != want {
			t.Fatalf("limit %d: size %d, want %d", in, got, want)
		}
	}
	if got := (Params{Limit: 7}).Fetch(); got != 8 {
		t.Fatalf("fetch = %d", got)
	}
}

func TestCut(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	position := func(i int) Cursor { return Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Minute), ID: ids[i]} }

	page, next := Cut([]int{0, 1, 2}, Params{Limit: 2}, position)
	if !slices.Equal(page, []int{0, 1}) || next == "" {
		t.Fatalf("page=%v next=%q", page, next)
	}

	after, err := Params{Cursor: next}.After()
	if err != nil {
		t.Fatalf("decode next: %v", err)
	}
	if after.ID != ids[1] {
		t.Fatalf("next cursor points at %s, want %s", after.ID, ids[1])
	}

	page, next = Cut([]int{0, 1}, Params{Limit: 2}, position)
	if !slices.Equal(page, []int{0, 1}) || next != "" {
		t.Fatalf("last page=%v next=%q", page, next)
	}
}
