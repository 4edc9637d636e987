package scheduling

import (
	"container/heap"

	"dial-a-ride/internal/models"
)

// Request is a queued trip and its cost
type Request struct {
	Trip *models.Trip
	Cost float64
}

type requestHeap []Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].Cost != h[j].Cost {
		return h[i].Cost > h[j].Cost
	}
	return h[i].Trip.ID < h[j].Trip.ID
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(Request)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = Request{}
	*h = old[:n-1]
	return item
}

// RequestQueue pops the highest cost trip first. Equal costs pop in
// ascending trip id order.
type RequestQueue struct {
	items requestHeap
	cost  CostFunc
}

// NewRequestQueue creates an empty queue rating trips with cost
func NewRequestQueue(cost CostFunc) *RequestQueue {
	return &RequestQueue{cost: cost}
}

// Push rates and enqueues a trip
func (q *RequestQueue) Push(trip *models.Trip) {
	heap.Push(&q.items, Request{Trip: trip, Cost: q.cost(trip)})
}

// Pop removes the highest cost request
func (q *RequestQueue) Pop() (Request, bool) {
	if len(q.items) == 0 {
		return Request{}, false
	}
	return heap.Pop(&q.items).(Request), true
}

// Len returns the number of queued trips
func (q *RequestQueue) Len() int {
	return len(q.items)
}
