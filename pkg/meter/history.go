//go:build linux

package meter

// DefaultHistorySize is the number of reports kept when no size is given.
const DefaultHistorySize = 60

// History is a fixed-capacity ring of reports. Pushing into a full ring
// evicts the oldest report. History is not safe for concurrent use.
type History struct {
	buf  []Report
	head int // index of the oldest report
	size int
}

// NewHistory returns an empty ring holding at most capacity reports.
// A capacity below 1 is raised to 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Report, capacity)}
}

func (h *History) Push(r Report) {
	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = r
		h.size++
		return
	}
	h.buf[h.head] = r
	h.head = (h.head + 1) % len(h.buf)
}

func (h *History) Len() int { return h.size }

func (h *History) Cap() int { return len(h.buf) }

// All returns the retained reports, oldest first, in a new slice.
func (h *History) All() []Report {
	out := make([]Report, 0, h.size)
	for i := range h.size {
		out = append(out, h.buf[(h.head+i)%len(h.buf)])
	}
	return out
}
