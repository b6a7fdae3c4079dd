package refs

import (
	"testing"

	"github.com/bradfitz/iter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestOwnersRecordAndList(t *testing.T) {
	o := NewOwners[string, int]()
	assert.NotNil(t, o.ListOwned("cmd"))
	assert.Empty(t, o.ListOwned("cmd"))
	o.Record("cmd", 1)
	o.Record("cmd", 2)
	o.Record("other", 3)
	assert.Equal(t, []int{1, 2}, o.ListOwned("cmd"))
	assert.True(t, o.IsOwnedBy(2, "cmd"))
	assert.False(t, o.IsOwnedBy(3, "cmd"))
	assert.False(t, o.IsOwnedBy(1, "nobody"))
}

func TestOwnersRelease(t *testing.T) {
	o := NewOwners[string, int]()
	for i := range iter.N(4) {
		o.Record("cmd", i)
	}
	assert.True(t, o.Release("cmd", 2))
	assert.False(t, o.Release("cmd", 2))
	assert.Equal(t, []int{0, 1, 3}, o.ListOwned("cmd"))
	assert.False(t, o.IsOwnedBy(2, "cmd"))
}

func TestOwnersReleaseAll(t *testing.T) {
	o := NewOwners[string, int]()
	o.Record("cmd", 1)
	o.Record("cmd", 2)
	var seen []int
	got := o.ReleaseAll("cmd", func(c int) { seen = append(seen, c) })
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, got, seen)
	assert.Empty(t, o.ListOwned("cmd"))
	assert.False(t, o.IsOwnedBy(1, "cmd"))
	assert.Empty(t, o.ReleaseAll("cmd", nil))
	// The owner can accumulate children again afterwards.
	o.Record("cmd", 5)
	assert.Equal(t, []int{5}, o.ListOwned("cmd"))
}

// 10 owners, 10 children each, all recorded from parallel callers.
func TestOwnersConcurrentRecordNoCrossContamination(t *testing.T) {
	o := NewOwners[int, int]()
	var g errgroup.Group
	for owner := range iter.N(10) {
		for i := range iter.N(10) {
			child := owner*100 + i
			g.Go(func() error {
				o.Record(owner, child)
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())
	for owner := range iter.N(10) {
		got := o.ListOwned(owner)
		assert.Len(t, got, 10)
		for _, c := range got {
			assert.Equal(t, owner, c/100)
		}
	}
}

func TestOwnersRecordRacingReleaseAll(t *testing.T) {
	o := NewOwners[int, int]()
	released := make(chan []int, 100)
	var g errgroup.Group
	for i := range iter.N(100) {
		g.Go(func() error {
			o.Record(0, i)
			return nil
		})
		if i%10 == 0 {
			g.Go(func() error {
				released <- o.ReleaseAll(0, nil)
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())
	close(released)
	total := len(o.ListOwned(0))
	for r := range released {
		total += len(r)
	}
	assert.Equal(t, 100, total, "every record lands in exactly one release or the live list")
}
