package bank

import "sync"

// idSeed is the value of a fresh allocator. The first id issued is idSeed+1.
const idSeed = 1000

// IDAllocator issues account ids. Ids are never reused, closing an account
// does not give its id back.
type IDAllocator struct {
	mu   sync.Mutex
	last int
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{last: idSeed}
}

// Next issues a new id.
func (a *IDAllocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.last++
	return a.last
}

// Last returns the most recently issued id, or the seed if none was issued.
func (a *IDAllocator) Last() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.last
}

// ResetTo makes n the last issued id. It is used when a snapshot is loaded.
func (a *IDAllocator) ResetTo(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.last = n
}
