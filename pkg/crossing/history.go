package crossing

type entry struct {
	position float64
	seen     uint64
}

//History holds the most recent position of each track id. Depth is one: Set
//overwrites. It is owned by a single goroutine and does no locking.
type History struct {
	entries map[int]entry
	frame   uint64
}

func NewHistory() *History {
	return &History{entries: make(map[int]entry)}
}

//Get returns the last position recorded for trackID, if any.
func (h *History) Get(trackID int) (float64, bool) {
	e, ok := h.entries[trackID]
	return e.position, ok
}

//Set records position as the latest observation of trackID in the current frame.
func (h *History) Set(trackID int, position float64) {
	h.entries[trackID] = entry{position: position, seen: h.frame}
}

func (h *History) Len() int {
	return len(h.entries)
}

//Tick advances the frame counter used for ageing.
func (h *History) Tick() {
	h.frame++
}

//Evict drops tracks that have not been set during the last maxIdle frames and
//returns how many were removed. maxIdle == 0 keeps everything.
func (h *History) Evict(maxIdle uint64) int {
	if maxIdle == 0 {
		return 0
	}

	removed := 0
	for id, e := range h.entries {
		if h.frame-e.seen > maxIdle {
			delete(h.entries, id)
			removed++
		}
	}
	return removed
}
