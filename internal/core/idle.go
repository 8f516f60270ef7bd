package core

import "runtime"

// idleStore holds the resources that are allocated but not borrowed. It is
// an ordered container polled at the end the configured Order names.
//
// Without affinity there is a single shard and the store is a plain deque.
// With affinity the store is split into GOMAXPROCS shards: a released ref
// goes back to the shard it last occupied, and a pop probes a rotating home
// shard first, then steals from the remaining shards in fixed rotation.
// Goroutines have no stable carrier-thread identity visible to library
// code, so per-ref shard stickiness plus the rotation is the closest
// goroutine-world equivalent of per-thread partitions.
//
// All methods require the pool lock; sharding here is data layout, not a
// second synchronization domain.
type idleStore[T any] struct {
	order  Order
	shards []deque[*Ref[T]]
	probe  int
	size   int
}

func newIdleStore[T any](order Order, affinity bool) *idleStore[T] {
	n := 1
	if affinity {
		n = runtime.GOMAXPROCS(0)
		if n < 1 {
			n = 1
		}
	}
	return &idleStore[T]{
		order:  order,
		shards: make([]deque[*Ref[T]], n),
	}
}

// len returns the number of idle refs across all shards.
func (s *idleStore[T]) len() int {
	return s.size
}

// put inserts r at the back of its shard.
func (s *idleStore[T]) put(r *Ref[T]) {
	s.shards[r.shard%len(s.shards)].pushBack(r)
	s.size++
}

// pop removes and returns the next ref per the configured order, probing
// the home shard first and stealing from the others on a miss. The probe
// position advances after every successful pop so consecutive borrowers
// spread across shards.
func (s *idleStore[T]) pop() (*Ref[T], bool) {
	n := len(s.shards)
	for i := range n {
		shard := (s.probe + i) % n
		d := &s.shards[shard]
		var (
			r  *Ref[T]
			ok bool
		)
		if s.order == OrderLIFO {
			r, ok = d.popBack()
		} else {
			r, ok = d.popFront()
		}
		if ok {
			r.shard = shard
			s.probe = (s.probe + 1) % n
			s.size--
			return r, true
		}
	}
	return nil, false
}

// drain removes and returns every idle ref. Used by Close.
func (s *idleStore[T]) drain() []*Ref[T] {
	out := make([]*Ref[T], 0, s.size)
	for i := range s.shards {
		for {
			r, ok := s.shards[i].popFront()
			if !ok {
				break
			}
			out = append(out, r)
		}
	}
	s.size = 0
	return out
}
