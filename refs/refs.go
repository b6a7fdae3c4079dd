// Package refs maps opaque handles to the live objects they denote, and tracks
// which handles were created on behalf of which other handle.
package refs

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
)

var (
	ErrInvalidHandle    = errors.New("invalid handle")
	ErrResourceNotFound = errors.New("resource not found")
)

// Store is safe for concurrent use. Lookups and mutations of different handles
// never contend on a shared lock. V must have identity semantics (typically a
// pointer): the reverse index is keyed by it.
type Store[H comparable, V comparable] struct {
	role      string
	newHandle func() H
	refs      *xsync.Map[H, V]
	handles   *xsync.Map[V, H]
}

func NewStore[H comparable, V comparable](role string, newHandle func() H) *Store[H, V] {
	return &Store[H, V]{
		role:      role,
		newHandle: newHandle,
		refs:      xsync.NewMap[H, V](),
		handles:   xsync.NewMap[V, H](),
	}
}

func (me *Store[H, V]) Role() string {
	return me.role
}

func (me *Store[H, V]) Len() int {
	return me.refs.Size()
}

func (me *Store[H, V]) GetAll() (ret map[H]V) {
	ret = make(map[H]V, me.refs.Size())
	me.refs.Range(func(h H, v V) bool {
		ret[h] = v
		return true
	})
	return
}

// Add registers obj under a fresh handle. A resource can only be registered
// once.
func (me *Store[H, V]) Add(obj V) (ret H, err error) {
	ret = me.newHandle()
	if _, loaded := me.refs.LoadOrStore(ret, obj); loaded {
		err = fmt.Errorf("%s handle generator produced duplicate %v", me.role, ret)
		return
	}
	if prev, loaded := me.handles.LoadOrStore(obj, ret); loaded {
		me.refs.Delete(ret)
		err = fmt.Errorf("%s resource already registered as %v", me.role, prev)
		return
	}
	return
}

func (me *Store[H, V]) Get(h H) (ret V, err error) {
	ret, ok := me.refs.Load(h)
	if !ok {
		err = me.invalid(h)
	}
	return
}

// HandleFor is the reverse of Get.
func (me *Store[H, V]) HandleFor(obj V) (ret H, err error) {
	h, ok := me.handles.Load(obj)
	if ok {
		// The reverse entry outlives the forward one for the duration of a
		// Remove.
		if v, live := me.refs.Load(h); live && v == obj {
			ret = h
			return
		}
	}
	err = fmt.Errorf("%w: %s %v", ErrResourceNotFound, me.role, obj)
	return
}

func (me *Store[H, V]) Remove(h H) (err error) {
	_, err = me.Pop(h)
	return
}

// Pop removes h and returns what it denoted.
func (me *Store[H, V]) Pop(h H) (ret V, err error) {
	ret, ok := me.refs.LoadAndDelete(h)
	if !ok {
		err = me.invalid(h)
		return
	}
	me.handles.Delete(ret)
	return
}

func (me *Store[H, V]) invalid(h H) error {
	return fmt.Errorf("%w: %s %v", ErrInvalidHandle, me.role, h)
}
