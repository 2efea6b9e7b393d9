package timer

import "container/heap"

// timerHeap implements container/heap.Interface for *Timer, ordered by
// deadline and then by insertion sequence.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return before(h[i], h[j]) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

func before(a, b *Timer) bool {
	if a.deadline.Equal(b.deadline) {
		return a.seq < b.seq
	}
	return a.deadline.Before(b.deadline)
}

func heapPush(h *timerHeap, t *Timer) {
	heap.Push(h, t)
}

func heapPop(h *timerHeap) *Timer {
	return heap.Pop(h).(*Timer)
}

// heapRemove drops t from the heap if it is still scheduled.
func heapRemove(h *timerHeap, t *Timer) bool {
	if t.index < 0 || t.index >= h.Len() || (*h)[t.index] != t {
		return false
	}
	heap.Remove(h, t.index)
	return true
}
