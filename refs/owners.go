package refs

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Owners records which child handles (parameters) each owner handle (a
// command) created. Every owner has its own immutable list behind an atomic
// pointer: updates for different owners never touch the same memory, and
// concurrent updates for the same owner retry their compare-and-swap instead of
// blocking.
type Owners[O comparable, C comparable] struct {
	lists *xsync.Map[O, *atomic.Pointer[owned[C]]]
}

// owned is an immutable cons list, newest first. A released list is never
// appended to again; a Record that finds one starts over with a new slot.
type owned[C comparable] struct {
	value    C
	next     *owned[C]
	released bool
}

func NewOwners[O comparable, C comparable]() *Owners[O, C] {
	return &Owners[O, C]{
		lists: xsync.NewMap[O, *atomic.Pointer[owned[C]]](),
	}
}

func (me *Owners[O, C]) slot(owner O) *atomic.Pointer[owned[C]] {
	if p, ok := me.lists.Load(owner); ok {
		return p
	}
	p, _ := me.lists.LoadOrStore(owner, new(atomic.Pointer[owned[C]]))
	return p
}

func (me *Owners[O, C]) Record(owner O, child C) {
	for {
		p := me.slot(owner)
		head := p.Load()
		if head != nil && head.released {
			// Lost a race with ReleaseAll, which unmaps the slot before marking
			// it. The next slot lookup installs a fresh one.
			continue
		}
		if p.CompareAndSwap(head, &owned[C]{value: child, next: head}) {
			return
		}
	}
}

// IsOwnedBy reports whether child was recorded for owner.
func (me *Owners[O, C]) IsOwnedBy(child C, owner O) bool {
	p, ok := me.lists.Load(owner)
	if !ok {
		return false
	}
	for n := p.Load(); n != nil && !n.released; n = n.next {
		if n.value == child {
			return true
		}
	}
	return false
}

// ListOwned returns the children of owner in the order they were recorded. It
// is empty, never nil.
func (me *Owners[O, C]) ListOwned(owner O) []C {
	ret := []C{}
	p, ok := me.lists.Load(owner)
	if !ok {
		return ret
	}
	head := p.Load()
	if head != nil && head.released {
		return ret
	}
	for n := head; n != nil; n = n.next {
		ret = append(ret, n.value)
	}
	reverse(ret)
	return ret
}

// ReleaseAll detaches every child of owner and returns them in record order.
// onEach, if not nil, is called for each of them after the detach.
func (me *Owners[O, C]) ReleaseAll(owner O, onEach func(C)) []C {
	ret := []C{}
	p, ok := me.lists.LoadAndDelete(owner)
	if !ok {
		return ret
	}
	head := p.Swap(&owned[C]{released: true})
	for n := head; n != nil && !n.released; n = n.next {
		ret = append(ret, n.value)
	}
	reverse(ret)
	if onEach != nil {
		for _, c := range ret {
			onEach(c)
		}
	}
	return ret
}

// Release removes a single association. It reports whether there was one.
func (me *Owners[O, C]) Release(owner O, child C) bool {
	p, ok := me.lists.Load(owner)
	if !ok {
		return false
	}
	for {
		head := p.Load()
		if head != nil && head.released {
			return false
		}
		next, found := without(head, child)
		if !found {
			return false
		}
		if p.CompareAndSwap(head, next) {
			return true
		}
	}
}

// without rebuilds the prefix of the list up to child, sharing the tail after
// it.
func without[C comparable](head *owned[C], child C) (*owned[C], bool) {
	var prefix []C
	for n := head; n != nil; n = n.next {
		if n.value == child {
			ret := n.next
			for i := len(prefix) - 1; i >= 0; i-- {
				ret = &owned[C]{value: prefix[i], next: ret}
			}
			return ret, true
		}
		prefix = append(prefix, n.value)
	}
	return head, false
}

func reverse[C any](s []C) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
