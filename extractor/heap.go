package extractor

import (
	"container/heap"

	"github.com/pkg/errors"
)

type heapElem[V any] struct {
	key   uint64
	value V
}

type heapElems[V any] []heapElem[V]

func (self heapElems[V]) Len() int           { return len(self) }
func (self heapElems[V]) Less(i, j int) bool { return self[i].key < self[j].key }
func (self heapElems[V]) Swap(i, j int)      { self[i], self[j] = self[j], self[i] }

func (self *heapElems[V]) Push(x any) {
	*self = append(*self, x.(heapElem[V]))
}

func (self *heapElems[V]) Pop() any {
	old := *self
	n := len(old)
	item := old[n-1]
	*self = old[:n-1]
	return item
}

// MinHeap is a fixed capacity binary min-heap keyed by an unsigned
// ordinal. Inserting beyond the capacity fails with ErrHeapOverflow.
type MinHeap[V any] struct {
	max_size int
	elems    heapElems[V]
}

func NewMinHeap[V any](max_size int) *MinHeap[V] {
	return &MinHeap[V]{
		max_size: max_size,
		elems:    make(heapElems[V], 0, max_size),
	}
}

func (self *MinHeap[V]) Len() int {
	return len(self.elems)
}

func (self *MinHeap[V]) Cap() int {
	return self.max_size
}

func (self *MinHeap[V]) Insert(key uint64, value V) error {
	if len(self.elems) >= self.max_size {
		return errors.Wrapf(ErrHeapOverflow,
			"inserting key %d into heap of size %d", key, self.max_size)
	}
	heap.Push(&self.elems, heapElem[V]{key: key, value: value})
	return nil
}

// Min returns the smallest entry without removing it.
func (self *MinHeap[V]) Min() (key uint64, value V, ok bool) {
	if len(self.elems) == 0 {
		return 0, value, false
	}
	return self.elems[0].key, self.elems[0].value, true
}

func (self *MinHeap[V]) DeleteMin() (key uint64, value V, ok bool) {
	if len(self.elems) == 0 {
		return 0, value, false
	}
	elem := heap.Pop(&self.elems).(heapElem[V])
	return elem.key, elem.value, true
}
