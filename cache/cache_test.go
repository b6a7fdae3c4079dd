package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bradfitz/iter"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

func mustFingerprint(t *testing.T, text string, value interface{}) fingerprint.Fingerprint {
	fp, err := fingerprint.Build("db=test", text, sqltypes.CommandText, []fingerprint.Parameter{
		{Name: "@p", Value: value, Type: sqltypes.InferDbType(value)},
	})
	require.NoError(t, err)
	return fp
}

func backends(t *testing.T) map[string]Backend {
	disk, err := NewDisk(t.TempDir(), 3)
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	r, err := NewRedis(rdb, RedisOptions{KeyPrefix: "test:"})
	require.NoError(t, err)
	return map[string]Backend{
		"memory": NewMemory(),
		"disk":   disk,
		"redis":  r,
	}
}

func TestBackendsWriteOnce(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fp := mustFingerprint(t, "select 1", int32(1))
			_, ok, err := b.Get(ctx, KindDataSet, fp)
			require.NoError(t, err)
			assert.False(t, ok)
			stored, err := b.Put(ctx, KindDataSet, fp, []byte("first"))
			require.NoError(t, err)
			assert.True(t, stored)
			stored, err = b.Put(ctx, KindDataSet, fp, []byte("second"))
			require.NoError(t, err)
			assert.False(t, stored)
			v, ok, err := b.Get(ctx, KindDataSet, fp)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "first", string(v))
			// Kinds are separate namespaces.
			_, ok, err = b.Get(ctx, KindScalar, fp)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackendsDistinguishFingerprints(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := range iter.N(20) {
				fp := mustFingerprint(t, "select @p", int32(i))
				_, err := b.Put(ctx, KindRowCount, fp, []byte{byte(i)})
				require.NoError(t, err)
			}
			for i := range iter.N(20) {
				v, ok, err := b.Get(ctx, KindRowCount, mustFingerprint(t, "select @p", int32(i)))
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, []byte{byte(i)}, v)
			}
		})
	}
}

func TestCacheScalarNullIsAHit(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemory())
	fp := mustFingerprint(t, "select null", "x")
	_, ok, err := c.RetrieveScalar(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.RecordScalar(ctx, fp, sqltypes.Null))
	v, ok, err := c.RetrieveScalar(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, sqltypes.IsNull(v))
}

func TestCacheFirstRecordingWins(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemory())
	fp := mustFingerprint(t, "update t", int64(3))
	require.NoError(t, c.RecordRowCount(ctx, fp, 1))
	require.NoError(t, c.RecordRowCount(ctx, fp, 2))
	n, ok, err := c.RetrieveRowCount(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, n)
	require.NoError(t, c.RecordScalar(ctx, fp, "a"))
	require.NoError(t, c.RecordScalar(ctx, fp, "b"))
	v, _, _ := c.RetrieveScalar(ctx, fp)
	assert.Equal(t, "a", v)
}

func TestDiskPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fp := mustFingerprint(t, "select * from t", "k")
	d1, err := NewDisk(dir, 2)
	require.NoError(t, err)
	require.NoError(t, New(d1).RecordDataSet(ctx, fp, []byte("rows")))
	d2, err := NewDisk(dir, 2)
	require.NoError(t, err)
	v, ok, err := New(d2).RetrieveDataSet(ctx, fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rows", string(v))
}

func TestDiskRejectsZeroDepth(t *testing.T) {
	_, err := NewDisk(t.TempDir(), 0)
	assert.Error(t, err)
}

func TestRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewRedis(nil, RedisOptions{Addr: addr})
	assert.Error(t, err)
}
