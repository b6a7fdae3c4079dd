package sqlreplay

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

func init() {
	sql.Register("sqlreplay", &sqlDriver{})
}

// FormatDSN gives the data source name the "sqlreplay" database/sql driver
// opens: the host address, then the server connection string.
func FormatDSN(address, connectionString string) string {
	if connectionString == "" {
		return address
	}
	return address + "?" + url.Values{"conn": {connectionString}}.Encode()
}

func ParseDSN(dsn string) (address, connectionString string, err error) {
	address, query, _ := strings.Cut(dsn, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		err = fmt.Errorf("parsing dsn %q: %w", dsn, err)
		return
	}
	connectionString = values.Get("conn")
	return
}

// badConn tells database/sql to discard a connection whose channel faulted.
func badConn(err error) error {
	if errors.Is(err, ErrChannelFaulted) {
		return driver.ErrBadConn
	}
	return err
}

type sqlDriver struct{}

func (me *sqlDriver) Open(name string) (ret driver.Conn, err error) {
	addr, cs, err := ParseDSN(name)
	if err != nil {
		return
	}
	cl, err := Dial(addr)
	if err != nil {
		return
	}
	c, err := cl.NewConnection(cs)
	if err == nil {
		err = c.Open()
	}
	if err != nil {
		cl.Close()
		return
	}
	ret = &sqlConn{cl: cl, c: c}
	return
}

type sqlConn struct {
	cl *Client
	c  *Connection
	tx *Transaction
}

var _ interface {
	driver.Conn
	driver.ConnBeginTx
	driver.Pinger
} = (*sqlConn)(nil)

func (me *sqlConn) Ping(context.Context) error {
	_, err := me.c.State()
	return badConn(err)
}

func (me *sqlConn) Begin() (driver.Tx, error) {
	return me.BeginTx(context.Background(), driver.TxOptions{})
}

func isolationLevel(l driver.IsolationLevel) (sqltypes.IsolationLevel, error) {
	switch sql.IsolationLevel(l) {
	case sql.LevelDefault:
		return sqltypes.IsolationUnspecified, nil
	case sql.LevelReadUncommitted:
		return sqltypes.IsolationReadUncommitted, nil
	case sql.LevelReadCommitted:
		return sqltypes.IsolationReadCommitted, nil
	case sql.LevelRepeatableRead:
		return sqltypes.IsolationRepeatableRead, nil
	case sql.LevelSnapshot:
		return sqltypes.IsolationSnapshot, nil
	case sql.LevelSerializable:
		return sqltypes.IsolationSerializable, nil
	}
	return 0, fmt.Errorf("%w: isolation level %v", ErrNotSupported, sql.IsolationLevel(l))
}

func (me *sqlConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if me.tx != nil {
		return nil, errors.New("already in a transaction")
	}
	level, err := isolationLevel(opts.Isolation)
	if err != nil {
		return nil, err
	}
	tx, err := me.c.BeginTransaction(level)
	if err != nil {
		return nil, badConn(err)
	}
	me.tx = tx
	return &sqlTx{me, tx}, nil
}

type sqlTx struct {
	conn *sqlConn
	tx   *Transaction
}

func (me *sqlTx) end(f func() error) (err error) {
	if me.conn.tx != me.tx {
		return ErrTransactionDone
	}
	err = f()
	if err == nil {
		err = me.tx.Dispose()
	}
	me.conn.tx = nil
	return badConn(err)
}

func (me *sqlTx) Commit() error   { return me.end(me.tx.Commit) }
func (me *sqlTx) Rollback() error { return me.end(me.tx.Rollback) }

func (me *sqlConn) Close() (err error) {
	err = me.c.Dispose()
	if cerr := me.cl.Close(); err == nil {
		err = cerr
	}
	return
}

func (me *sqlConn) Prepare(query string) (ret driver.Stmt, err error) {
	cmd, err := me.c.CreateCommand()
	if err != nil {
		return nil, badConn(err)
	}
	err = cmd.SetText(query)
	if err == nil && me.tx != nil {
		err = cmd.SetTransaction(me.tx)
	}
	if err == nil {
		err = cmd.Prepare()
	}
	if err != nil {
		cmd.Dispose()
		return nil, badConn(err)
	}
	ret = &sqlStmt{cmd}
	return
}

type sqlStmt struct {
	cmd *Command
}

var _ interface {
	driver.Stmt
	driver.StmtExecContext
	driver.StmtQueryContext
} = (*sqlStmt)(nil)

func (me *sqlStmt) Close() error {
	return badConn(me.cmd.Dispose())
}

func (me *sqlStmt) NumInput() int {
	return -1
}

// bind replaces the command's parameters with args. Unnamed args bind
// positionally.
func (me *sqlStmt) bind(args []driver.NamedValue) error {
	ps := me.cmd.Parameters()
	if err := ps.Clear(); err != nil {
		return err
	}
	for _, arg := range args {
		p, err := me.cmd.CreateParameter()
		if err != nil {
			return err
		}
		v := arg.Value
		if v == nil {
			v = sqltypes.Null
		}
		err = p.Update(ParameterFieldName|ParameterFieldValue|ParameterFieldType, ParameterDescriptor{
			Name:  arg.Name,
			Value: v,
			Type:  sqltypes.InferDbType(v),
		})
		if err != nil {
			return err
		}
		if _, err := ps.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// watch cancels the command if ctx is done before the returned func is called.
func (me *sqlStmt) watch(ctx context.Context) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			me.cmd.Cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (me *sqlStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := me.bind(args); err != nil {
		return nil, badConn(err)
	}
	defer me.watch(ctx)()
	n, err := me.cmd.ExecuteNonQuery()
	if err != nil {
		return nil, badConn(err)
	}
	return sqlResult(n), nil
}

func (me *sqlStmt) Exec(args []driver.Value) (driver.Result, error) {
	return me.ExecContext(context.Background(), namedValues(args))
}

func (me *sqlStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := me.bind(args); err != nil {
		return nil, badConn(err)
	}
	stop := me.watch(ctx)
	r, err := me.cmd.ExecuteReader()
	stop()
	if err != nil {
		return nil, badConn(err)
	}
	cols, err := r.FieldNames()
	if err != nil {
		r.Dispose()
		return nil, badConn(err)
	}
	return &sqlRows{r, cols}, nil
}

func (me *sqlStmt) Query(args []driver.Value) (driver.Rows, error) {
	return me.QueryContext(context.Background(), namedValues(args))
}

func namedValues(args []driver.Value) []driver.NamedValue {
	ret := make([]driver.NamedValue, len(args))
	for i, v := range args {
		ret[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return ret
}

// sqlResult is a row count. Last insert IDs are not part of the protocol.
type sqlResult int64

func (me sqlResult) LastInsertId() (int64, error) {
	return 0, fmt.Errorf("%w: last insert id", ErrNotSupported)
}

func (me sqlResult) RowsAffected() (int64, error) {
	return int64(me), nil
}

type sqlRows struct {
	r    *Reader
	cols []string
}

func (me *sqlRows) Columns() []string {
	return me.cols
}

func (me *sqlRows) Close() error {
	return badConn(me.r.Dispose())
}

func (me *sqlRows) Next(dest []driver.Value) error {
	ok, err := me.r.Read()
	if err != nil {
		return badConn(err)
	}
	if !ok {
		return io.EOF
	}
	vs, err := me.r.Values()
	if err != nil {
		return badConn(err)
	}
	for i := range dest {
		if i < len(vs) {
			dest[i] = driverValue(vs[i])
		}
	}
	return nil
}

// driverValue narrows a protocol value to the types database/sql accepts.
func driverValue(v interface{}) driver.Value {
	switch x := v.(type) {
	case sqltypes.DBNull:
		return nil
	case uint8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case uuid.UUID:
		return x.String()
	case time.Time, int64, float64, bool, []byte, string:
		return x
	}
	return fmt.Sprint(v)
}
