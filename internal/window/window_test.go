package window

import (
	"reflect"
	"testing"
)

func TestWindowCommitEvictsOldestFirst(t *testing.T) {
	w := New(2)
	if _, ok := w.Commit(0); ok {
		t.Fatalf("unexpected eviction")
	}
	if _, ok := w.Commit(3); ok {
		t.Fatalf("unexpected eviction")
	}
	ev, ok := w.Commit(1)
	if !ok || ev != 0 {
		t.Fatalf("evicted (%d, %v), want (0, true)", ev, ok)
	}
	ev, ok = w.Commit(2)
	if !ok || ev != 3 {
		t.Fatalf("evicted (%d, %v), want (3, true)", ev, ok)
	}
	if got := w.AppendTo(nil); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("window = %v, want [1 2]", got)
	}
}

func TestWindowNeverExceedsLimit(t *testing.T) {
	w := New(3)
	for i := 0; i < 50; i++ {
		w.Commit(i % 7)
		if w.Len() > w.Limit() {
			t.Fatalf("len %d > limit %d after commit %d", w.Len(), w.Limit(), i)
		}
	}
}

func TestWindowPopOldestEmpty(t *testing.T) {
	w := New(1)
	if _, ok := w.PopOldest(); ok {
		t.Fatalf("pop on empty window succeeded")
	}
}

func TestWindowRingWraps(t *testing.T) {
	w := New(2)
	for _, idx := range []int{5, 6, 7, 8, 9} {
		w.Commit(idx)
	}
	if got := w.AppendTo(nil); !reflect.DeepEqual(got, []int{8, 9}) {
		t.Fatalf("window = %v, want [8 9]", got)
	}
	if w.At(0) != 8 || w.At(1) != 9 {
		t.Fatalf("At = %d,%d, want 8,9", w.At(0), w.At(1))
	}
}

func TestWindowReset(t *testing.T) {
	w := New(2)
	w.Commit(1)
	w.Commit(2)
	w.Reset()
	if w.Len() != 0 {
		t.Fatalf("len after reset = %d", w.Len())
	}
	w.Commit(4)
	if w.At(0) != 4 {
		t.Fatalf("front = %d, want 4", w.At(0))
	}
}

func TestWindowPopNewest(t *testing.T) {
	w := New(3)
	if _, ok := w.PopNewest(); ok {
		t.Fatalf("pop newest on empty window succeeded")
	}
	for _, idx := range []int{1, 2, 3, 4} {
		w.Commit(idx)
	}
	if idx, ok := w.PopNewest(); !ok || idx != 4 {
		t.Fatalf("PopNewest = %d, %v; want 4, true", idx, ok)
	}
	if n, _ := w.Newest(); n != 3 {
		t.Fatalf("newest = %d, want 3", n)
	}
	w.Commit(7)
	if got := w.AppendTo(nil); !reflect.DeepEqual(got, []int{2, 3, 7}) {
		t.Fatalf("window = %v, want [2 3 7]", got)
	}
}
