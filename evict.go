package refpool

import "time"

// EvictAfterAcquires retires a resource once it has been handed out n
// times. With n=2 a resource serves two borrowers and is then destroyed.
func EvictAfterAcquires[T any](n int64) EvictionPredicate[T] {
	return func(_ T, m Metadata) bool {
		return m.AcquireCount() >= n
	}
}

// EvictOlderThan retires a resource once d has elapsed since its
// allocation.
func EvictOlderThan[T any](d time.Duration) EvictionPredicate[T] {
	return func(_ T, m Metadata) bool {
		return m.Age() >= d
	}
}

// EvictIdleLongerThan retires a resource that has sat idle for d or more.
func EvictIdleLongerThan[T any](d time.Duration) EvictionPredicate[T] {
	return func(_ T, m Metadata) bool {
		return m.IdleTime() >= d
	}
}

// EvictAny combines predicates: the resource is retired when any of them
// says so.
func EvictAny[T any](preds ...EvictionPredicate[T]) EvictionPredicate[T] {
	return func(res T, m Metadata) bool {
		for _, pred := range preds {
			if pred(res, m) {
				return true
			}
		}
		return false
	}
}
