package sqlreplay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anacrolix/sqlreplay/cache"
	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

func TestDatabaseName(t *testing.T) {
	for cs, want := range map[string]string{
		"Server=x;Database=orders":             "orders",
		"server=x; initial catalog = billing ;": "billing",
		"file::memory:":                         "",
		"":                                      "",
	} {
		assert.Equal(t, want, databaseName(cs), cs)
	}
}

func TestReplayTransactionFinishesOnce(t *testing.T) {
	ctx := context.Background()
	c, err := Replaying(cache.New(cache.NewMemory())).Open(ctx, "Database=a")
	require.NoError(t, err)
	assert.Equal(t, "a", c.Database())
	require.NoError(t, c.ChangeDatabase(ctx, "b"))
	assert.Equal(t, "b", c.Database())
	tx, err := c.Begin(ctx, sqltypes.IsolationUnspecified)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Rollback(), ErrTransactionDone)
	require.NoError(t, c.Close())
}

// brokenRecorder fails every recording.
type brokenRecorder struct{}

var errBroken = errors.New("recorder broken")

func (brokenRecorder) RecordDataSet(context.Context, fingerprint.Fingerprint, []byte) error {
	return errBroken
}

func (brokenRecorder) RecordScalar(context.Context, fingerprint.Fingerprint, interface{}) error {
	return errBroken
}

func (brokenRecorder) RecordRowCount(context.Context, fingerprint.Fingerprint, int64) error {
	return errBroken
}

func TestRecorderFailureDoesNotFailExecution(t *testing.T) {
	ctx := context.Background()
	d := newFakeDriver()
	c, err := Recording(d, brokenRecorder{}).Open(ctx, "db=test")
	require.NoError(t, err)
	stmt := Statement{Text: selectByID, Parameters: []fingerprint.Parameter{
		{Name: "@id", Value: int32(1), Type: sqltypes.DbTypeInt32},
	}}
	cur, err := c.ExecuteReader(ctx, nil, stmt)
	require.NoError(t, err)
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []interface{}{int64(10)}, cur.Values())
	v, err := c.ExecuteScalar(ctx, nil, stmt)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
	n, err := c.ExecuteNonQuery(ctx, nil, stmt)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 3, d.calls.Load())
}
