package dbsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anacrolix/sqlreplay"
	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

var dbCount atomic.Int64

func openSqlite(t *testing.T) *Conn {
	d := &Driver{Name: "sqlite3", Database: func(string) string { return "main" }}
	cs := fmt.Sprintf("file:dbsql%d?mode=memory&cache=shared", dbCount.Add(1))
	c, err := d.Open(context.Background(), cs)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c.(*Conn)
}

func text(s string, params ...fingerprint.Parameter) sqlreplay.Statement {
	return sqlreplay.Statement{Text: s, Kind: sqltypes.CommandText, Parameters: params}
}

func TestExecuteAndRead(t *testing.T) {
	ctx := context.Background()
	c := openSqlite(t)
	assert.Equal(t, "main", c.Database())
	_, err := c.ExecuteNonQuery(ctx, nil, text("create table t(id integer, name text, data blob)"))
	require.NoError(t, err)
	n, err := c.ExecuteNonQuery(ctx, nil, text("insert into t values(@id, @name, ?)",
		fingerprint.Parameter{Name: "@id", Value: int64(1)},
		fingerprint.Parameter{Name: "@name", Value: sqltypes.Null},
		fingerprint.Parameter{Value: []byte("xyz")},
	))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	cur, err := c.ExecuteReader(ctx, nil, sqlreplay.Statement{Text: "t", Kind: sqltypes.CommandTable})
	require.NoError(t, err)
	cols, err := cur.Columns()
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "name", cols[1].Name)
	assert.Equal(t, 1, cols[1].Ordinal)
	assert.Equal(t, "INTEGER", strings.ToUpper(cols[0].DatabaseTypeName))
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	vs := cur.Values()
	assert.EqualValues(t, 1, vs[0])
	assert.True(t, sqltypes.IsNull(vs[1]))
	assert.Equal(t, []byte("xyz"), vs[2])
	ok, err = cur.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, -1, cur.RecordsAffected())
	require.NoError(t, cur.Close())
	require.NoError(t, cur.Close())
	assert.True(t, cur.IsClosed())
	_, err = cur.Columns()
	assert.ErrorIs(t, err, sqlreplay.ErrReaderClosed)
	_, err = cur.Next()
	assert.ErrorIs(t, err, sqlreplay.ErrReaderClosed)
}

func TestExecuteScalar(t *testing.T) {
	ctx := context.Background()
	c := openSqlite(t)
	v, err := c.ExecuteScalar(ctx, nil, text("select 7, 8"))
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
	_, err = c.ExecuteNonQuery(ctx, nil, text("create table e(x)"))
	require.NoError(t, err)
	v, err = c.ExecuteScalar(ctx, nil, text("select x from e"))
	require.NoError(t, err)
	assert.True(t, sqltypes.IsNull(v), "no rows")
	v, err = c.ExecuteScalar(ctx, nil, text("select null"))
	require.NoError(t, err)
	assert.True(t, sqltypes.IsNull(v))
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	c := openSqlite(t)
	_, err := c.ExecuteNonQuery(ctx, nil, text("create table t(x)"))
	require.NoError(t, err)
	tx, err := c.Begin(ctx, sqltypes.IsolationUnspecified)
	require.NoError(t, err)
	_, err = c.ExecuteNonQuery(ctx, tx, text("insert into t values(1)"))
	require.NoError(t, err)
	require.NoError(t, c.Prepare(ctx, tx, text("select x from t")))
	v, err := c.ExecuteScalar(ctx, tx, text("select count(*) from t"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	require.NoError(t, tx.Rollback())
	v, err = c.ExecuteScalar(ctx, nil, text("select count(*) from t"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)
}

func TestUnsupported(t *testing.T) {
	ctx := context.Background()
	c := openSqlite(t)
	assert.ErrorIs(t, c.ChangeDatabase(ctx, "other"), sqlreplay.ErrNotSupported)
	_, err := c.ExecuteNonQuery(ctx, nil, sqlreplay.Statement{Text: "proc", Kind: sqltypes.CommandStoredProcedure})
	assert.ErrorIs(t, err, sqlreplay.ErrNotSupported)
	_, err = c.Begin(ctx, sqltypes.IsolationLevel(99))
	assert.ErrorIs(t, err, sqlreplay.ErrNotSupported)
	assert.Error(t, c.Prepare(ctx, nil, text("select * from missing")))
}

func TestChangeDatabase(t *testing.T) {
	ctx := context.Background()
	c := openSqlite(t)
	var switched string
	c.driver = &Driver{Name: "sqlite3", ChangeDatabase: func(_ context.Context, _ *sql.Conn, name string) error {
		switched = name
		return nil
	}}
	require.NoError(t, c.ChangeDatabase(ctx, "other"))
	assert.Equal(t, "other", switched)
	assert.Equal(t, "other", c.Database())
}
