package window

// Window is the ordered set of committed live channel indices, oldest
// first. It is a fixed ring with one spare slot so a commit can push before
// it evicts; nothing allocates after New.
type Window struct {
	ring  []int
	head  int
	count int
	limit int
}

// New creates a window that keeps at most limit entries.
func New(limit int) *Window {
	if limit < 1 {
		limit = 1
	}
	return &Window{ring: make([]int, limit+1), limit: limit}
}

func (w *Window) Len() int { return w.count }
func (w *Window) Limit() int { return w.limit }

// At returns the i-th entry, 0 being the oldest.
func (w *Window) At(i int) int {
	return w.ring[(w.head+i)%len(w.ring)]
}

// Commit appends idx and, if that takes the window past its limit, pops
// and returns the oldest entry.
func (w *Window) Commit(idx int) (evicted int, ok bool) {
	w.ring[(w.head+w.count)%len(w.ring)] = idx
	w.count++
	if w.count > w.limit {
		return w.PopOldest()
	}
	return -1, false
}

// PopOldest removes and returns the front entry.
func (w *Window) PopOldest() (int, bool) {
	if w.count == 0 {
		return -1, false
	}
	idx := w.ring[w.head]
	w.head = (w.head + 1) % len(w.ring)
	w.count--
	return idx, true
}

// Newest returns the most recently committed entry.
func (w *Window) Newest() (int, bool) {
	if w.count == 0 {
		return -1, false
	}
	return w.At(w.count - 1), true
}

// PopNewest removes and returns the back entry.
func (w *Window) PopNewest() (int, bool) {
	idx, ok := w.Newest()
	if ok {
		w.count--
	}
	return idx, ok
}

// Reset empties the window.
func (w *Window) Reset() {
	w.head = 0
	w.count = 0
}

// AppendTo appends the entries oldest first to dst.
func (w *Window) AppendTo(dst []int) []int {
	for i := 0; i < w.count; i++ {
		dst = append(dst, w.At(i))
	}
	return dst
}
