package taskstore

// IDAllocator hands out task ids from a single counter. It is not safe for
// concurrent use on its own; Store serializes access to it.
type IDAllocator struct {
	next uint64
}

// NewIDAllocator creates an allocator whose first id is start
func NewIDAllocator(start uint64) *IDAllocator {
	return &IDAllocator{next: start}
}

// Next returns the current counter value and advances the counter by one
func (a *IDAllocator) Next() uint64 {
	id := a.next
	a.next++
	return id
}

// Peek returns the id the next call to Next will hand out
func (a *IDAllocator) Peek() uint64 {
	return a.next
}

// reset moves the counter to value. Only restore and drain may do this.
func (a *IDAllocator) reset(value uint64) {
	a.next = value
}
