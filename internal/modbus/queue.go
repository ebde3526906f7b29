package modbus

// queuedRequest is one pending Modbus-RTU request, tracked from enqueue
// until its response (or timeout) is delivered.
type queuedRequest struct {
	id           uint64
	seq          uint64 // insertion order, used as the tie-break (Open Question 3)
	basePriority int
	ignoredTimes int
	request      Request
}

// effectivePriority is base priority + ignored count -- this is what
// guarantees starvation-freedom: every cycle a request is skipped, its
// effective priority climbs by one, so it eventually wins.
func (q *queuedRequest) effectivePriority() int {
	return q.basePriority + q.ignoredTimes
}

// Queue is the priority queue of pending requests a Client pulls from.
// Tie-break among equal effective priority is insertion order (FIFO).
type Queue struct {
	items  []*queuedRequest
	nextID uint64
	nextSeq uint64
}

// NewQueue returns an empty request queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue adds a request at the given base priority and returns an opaque
// id a caller can later use to retrieve its response.
func (q *Queue) Enqueue(req Request, basePriority int) uint64 {
	q.nextID++
	id := q.nextID
	q.nextSeq++
	q.items = append(q.items, &queuedRequest{
		id:           id,
		seq:          q.nextSeq,
		basePriority: basePriority,
		request:      req,
	})
	return id
}

// Len reports the number of requests still queued.
func (q *Queue) Len() int { return len(q.items) }

// popHighest removes and returns the queued request with the highest
// effective priority, breaking ties by insertion order; every
// non-selected request has its ignoredTimes incremented.
func (q *Queue) popHighest() *queuedRequest {
	if len(q.items) == 0 {
		return nil
	}
	bestIdx := 0
	for i := 1; i < len(q.items); i++ {
		if better(q.items[i], q.items[bestIdx]) {
			bestIdx = i
		}
	}
	best := q.items[bestIdx]
	for i, it := range q.items {
		if i == bestIdx {
			continue
		}
		it.ignoredTimes++
	}
	q.items = append(q.items[:bestIdx], q.items[bestIdx+1:]...)
	return best
}

func better(a, b *queuedRequest) bool {
	ap, bp := a.effectivePriority(), b.effectivePriority()
	if ap != bp {
		return ap > bp
	}
	return a.seq < b.seq
}
