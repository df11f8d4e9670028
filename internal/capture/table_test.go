package capture

import (
	"slices"
	"testing"
)

func TestHeaderTable_SetAddOrder(t *testing.T) {
	var tb HeaderTable
	tb.Add("X-B", "1")
	tb.Set("X-A", "x")
	tb.Add("X-B", "2")
	tb.Set("x-b", "lower")

	if got := tb.Names(); !slices.Equal(got, []string{"X-B", "X-A", "x-b"}) {
		t.Fatalf("Names = %v", got)
	}
	if got := tb.Values("X-B"); !slices.Equal(got, []string{"1", "2"}) {
		t.Fatalf("X-B = %v", got)
	}

	tb.Set("X-B", "3")
	if got := tb.Values("X-B"); !slices.Equal(got, []string{"3"}) {
		t.Fatalf("Set should reset to a singleton, got %v", got)
	}
	if tb.Len() != 3 {
		t.Fatalf("Len = %d", tb.Len())
	}
}

func TestHeaderTable_ValuesIsACopy(t *testing.T) {
	var tb HeaderTable
	tb.Add("K", "v")
	got := tb.Values("K")
	got[0] = "mutated"
	if tb.Values("K")[0] != "v" {
		t.Fatal("Values exposed internal storage")
	}
	if tb.Values("missing") != nil {
		t.Fatal("missing name should yield nil")
	}
}

// Replaying a sequence of Set/Add operations must end with the values the
// last Set left plus every later Add.
func TestHeaderTable_ReplayProperty(t *testing.T) {
	type op struct {
		set bool
		val string
	}
	seqs := [][]op{
		{{false, "a"}, {false, "b"}},
		{{true, "a"}, {false, "b"}, {true, "c"}, {false, "d"}, {false, "e"}},
		{{false, "a"}, {true, "b"}},
		{{true, "only"}},
	}
	for _, seq := range seqs {
		var tb HeaderTable
		var want []string
		for _, o := range seq {
			if o.set {
				tb.Set("H", o.val)
				want = []string{o.val}
			} else {
				tb.Add("H", o.val)
				want = append(want, o.val)
			}
		}
		if got := tb.Values("H"); !slices.Equal(got, want) {
			t.Errorf("seq %v: got %v want %v", seq, got, want)
		}
	}
}

func TestHeaderTable_DelFoldsCase(t *testing.T) {
	var tb HeaderTable
	tb.Set("content-length", "1")
	tb.Set("X-Keep", "k")
	tb.Set("Content-Length", "2")

	tb.Del("CONTENT-LENGTH")

	if got := tb.Names(); !slices.Equal(got, []string{"X-Keep"}) {
		t.Fatalf("Names = %v", got)
	}
	if tb.Values("Content-Length") != nil || tb.Len() != 1 {
		t.Fatalf("Content-Length still present: %v", tb.Values("Content-Length"))
	}
}
