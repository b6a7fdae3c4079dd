package sqlreplay

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anacrolix/sqlreplay/dataset"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

// fakeDriver answers every query from results by command text and counts the
// executions that reached it.
type fakeDriver struct {
	calls   atomic.Int64
	results map[string]*dataset.DataSet

	mu  sync.Mutex
	txs []*fakeTx
}

type fakeTx struct {
	committed, rolledBack atomic.Bool
}

func (me *fakeTx) Commit() error   { me.committed.Store(true); return nil }
func (me *fakeTx) Rollback() error { me.rolledBack.Store(true); return nil }

func (me *fakeDriver) lastTx() *fakeTx {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.txs[len(me.txs)-1]
}

func (me *fakeDriver) Open(context.Context, string) (Conn, error) {
	return &fakeConn{me}, nil
}

type fakeConn struct {
	d *fakeDriver
}

func (me *fakeConn) Database() string { return "fake" }

func (me *fakeConn) ChangeDatabase(context.Context, string) error { return nil }

func (me *fakeConn) Begin(context.Context, sqltypes.IsolationLevel) (Tx, error) {
	tx := &fakeTx{}
	me.d.mu.Lock()
	me.d.txs = append(me.d.txs, tx)
	me.d.mu.Unlock()
	return tx, nil
}

func (me *fakeConn) Prepare(context.Context, Tx, Statement) error { return nil }

func (me *fakeConn) exec(stmt Statement) {
	me.d.calls.Add(1)
	if stmt.Text == "panic" {
		panic("driver blew up")
	}
}

func (me *fakeConn) ExecuteReader(_ context.Context, _ Tx, stmt Statement) (Cursor, error) {
	me.exec(stmt)
	ds, ok := me.d.results[stmt.Text]
	if !ok {
		ds = &dataset.DataSet{}
	}
	return dataset.NewReader(ds), nil
}

func (me *fakeConn) ExecuteScalar(_ context.Context, _ Tx, stmt Statement) (interface{}, error) {
	me.exec(stmt)
	if ds, ok := me.d.results[stmt.Text]; ok {
		return ds.Tables[0].Rows[0][0], nil
	}
	return sqltypes.Null, nil
}

// ExecuteNonQuery waits for the context to end if the text is "block".
func (me *fakeConn) ExecuteNonQuery(ctx context.Context, _ Tx, stmt Statement) (int64, error) {
	me.exec(stmt)
	if stmt.Text == "block" {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return int64(len(stmt.Parameters)), nil
}

func (me *fakeConn) Close() error { return nil }

const (
	selectByID  = "SELECT * FROM t WHERE id=@id"
	selectMixed = "SELECT * FROM mixed"
)

var mixedGuid = [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{results: map[string]*dataset.DataSet{
		selectByID: {Tables: []dataset.Table{{
			Columns: []sqltypes.Column{{Name: "v", TypeName: "int64", DatabaseTypeName: "INTEGER"}},
			Rows:    [][]interface{}{{int64(10)}, {int64(20)}},
		}}},
		selectMixed: {Tables: []dataset.Table{
			{
				Columns: []sqltypes.Column{
					{Name: "Id", TypeName: "int64", DatabaseTypeName: "INTEGER"},
					{Name: "name", Ordinal: 1, TypeName: "string", DatabaseTypeName: "TEXT", Nullable: true},
					{Name: "blob", Ordinal: 2, TypeName: "[]uint8", DatabaseTypeName: "BLOB"},
					{Name: "flag", Ordinal: 3, TypeName: "bool"},
					{Name: "guid", Ordinal: 4, TypeName: "uuid.UUID"},
					{Name: "odd", Ordinal: 5, TypeName: "complex128"},
				},
				Rows: [][]interface{}{
					{int64(7), "héllo", []byte("abcdef"), true, mixedGuid[:], int64(0)},
					{int64(8), sqltypes.Null, []byte{}, false, mixedGuid[:], int64(0)},
				},
				RecordsAffected: -1,
			},
			{
				Columns: []sqltypes.Column{{Name: "n", TypeName: "int64"}},
				Rows:    [][]interface{}{{int64(99)}},
			},
		}},
	}}
}

func startHost(t testing.TB, d Driver) *Host {
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	h, err := NewHost(NewService(d, Options{DefaultConnectionString: "db=test"}), l)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func dial(t testing.TB, h *Host) *Client {
	cl, err := Dial(h.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { cl.Close() })
	return cl
}

// openCommand gives a command on a fresh open connection.
func openCommand(t testing.TB, cl *Client, text string) *Command {
	c, err := cl.NewConnection("")
	require.NoError(t, err)
	require.NoError(t, c.Open())
	cmd, err := c.CreateCommand()
	require.NoError(t, err)
	require.NoError(t, cmd.SetText(text))
	return cmd
}

func addParameter(t testing.TB, cmd *Command, name string, value interface{}) *Parameter {
	p, err := cmd.CreateParameter()
	require.NoError(t, err)
	require.NoError(t, p.Update(ParameterFieldName|ParameterFieldValue|ParameterFieldType, ParameterDescriptor{
		Name:  name,
		Value: value,
		Type:  sqltypes.InferDbType(value),
	}))
	_, err = cmd.Parameters().Add(p)
	require.NoError(t, err)
	return p
}
