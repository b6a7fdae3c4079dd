package refs

import (
	"errors"
	"sync"
	"testing"

	"github.com/bradfitz/iter"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct{ name string }

func newThingStore() *Store[uuid.UUID, *thing] {
	return NewStore[uuid.UUID, *thing]("thing", uuid.NewV4)
}

func TestGetReturnsSameResource(t *testing.T) {
	s := newThingStore()
	a := &thing{"a"}
	h, err := s.Add(a)
	require.NoError(t, err)
	for range iter.N(3) {
		v, err := s.Get(h)
		require.NoError(t, err)
		assert.True(t, v == a)
	}
	require.NoError(t, s.Remove(h))
	_, err = s.Get(h)
	assert.True(t, errors.Is(err, ErrInvalidHandle))
	assert.True(t, errors.Is(s.Remove(h), ErrInvalidHandle), "second remove is a protocol error")
}

func TestHandleForRoundTrip(t *testing.T) {
	s := newThingStore()
	var hs []uuid.UUID
	for i := range iter.N(10) {
		h, err := s.Add(&thing{string(rune('a' + i))})
		require.NoError(t, err)
		hs = append(hs, h)
	}
	for _, h := range hs {
		v, err := s.Get(h)
		require.NoError(t, err)
		back, err := s.HandleFor(v)
		require.NoError(t, err)
		assert.Equal(t, h, back)
	}
	v, _ := s.Get(hs[0])
	require.NoError(t, s.Remove(hs[0]))
	_, err := s.HandleFor(v)
	assert.True(t, errors.Is(err, ErrResourceNotFound))
	_, err = s.HandleFor(&thing{"never"})
	assert.True(t, errors.Is(err, ErrResourceNotFound))
	assert.Equal(t, 9, s.Len())
}

func TestAddRejectsAliases(t *testing.T) {
	s := newThingStore()
	a := &thing{"a"}
	_, err := s.Add(a)
	require.NoError(t, err)
	_, err = s.Add(a)
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestAddDetectsBrokenGenerator(t *testing.T) {
	s := NewStore[int, *thing]("thing", func() int { return 7 })
	_, err := s.Add(&thing{})
	require.NoError(t, err)
	_, err = s.Add(&thing{})
	assert.Error(t, err)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := newThingStore()
	var wg sync.WaitGroup
	for range iter.N(20) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iter.N(100) {
				v := &thing{}
				h, err := s.Add(v)
				if !assert.NoError(t, err) {
					return
				}
				got, err := s.Get(h)
				assert.NoError(t, err)
				assert.True(t, got == v)
				assert.NoError(t, s.Remove(h))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.GetAll())
}
