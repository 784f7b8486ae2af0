package drawing

// DefaultUndoDepth is the number of snapshots kept when no depth is configured
const DefaultUndoDepth = 20

// History is a bounded stack of rectangle-set snapshots. When full, the
// oldest snapshot is evicted.
type History struct {
	depth     int
	snapshots [][]DrawnRectangle
}

// NewHistory creates a history keeping at most depth snapshots
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &History{depth: depth}
}

// Push stores a copy of rects
func (h *History) Push(rects []DrawnRectangle) {
	h.snapshots = append(h.snapshots, cloneRectangles(rects))
	if over := len(h.snapshots) - h.depth; over > 0 {
		h.snapshots = append(h.snapshots[:0:0], h.snapshots[over:]...)
	}
}

// Pop removes and returns the latest snapshot
func (h *History) Pop() ([]DrawnRectangle, bool) {
	if len(h.snapshots) == 0 {
		return nil, false
	}
	last := h.snapshots[len(h.snapshots)-1]
	h.snapshots = h.snapshots[:len(h.snapshots)-1]
	return last, true
}

// Len returns the number of stored snapshots
func (h *History) Len() int {
	return len(h.snapshots)
}

// Depth returns the capacity
func (h *History) Depth() int {
	return h.depth
}

// Clear drops every snapshot
func (h *History) Clear() {
	h.snapshots = nil
}

func cloneRectangles(rects []DrawnRectangle) []DrawnRectangle {
	if rects == nil {
		return nil
	}
	out := make([]DrawnRectangle, len(rects))
	copy(out, rects)
	return out
}
