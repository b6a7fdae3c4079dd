// Package dbsql adapts a database/sql driver to the sqlreplay Driver
// interface. Each sqlreplay connection holds one *sql.Conn.
package dbsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/anacrolix/sqlreplay"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

type Driver struct {
	// The database/sql driver name, such as "sqlite3".
	Name string
	// Switches conn to another database. If nil, ChangeDatabase is not
	// supported.
	ChangeDatabase func(ctx context.Context, conn *sql.Conn, name string) error
	// Names the database a new conn starts in.
	Database func(connectionString string) string
}

var _ sqlreplay.Driver = (*Driver)(nil)

func (me *Driver) Open(ctx context.Context, cs string) (sqlreplay.Conn, error) {
	db, err := sql.Open(me.Name, cs)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", me.Name)
	}
	c, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to %s database", me.Name)
	}
	ret := &Conn{driver: me, db: db, conn: c}
	if me.Database != nil {
		ret.database = me.Database(cs)
	}
	return ret, nil
}

type Conn struct {
	driver   *Driver
	db       *sql.DB
	conn     *sql.Conn
	database string
}

var _ sqlreplay.Conn = (*Conn)(nil)

func (me *Conn) Database() string {
	return me.database
}

func (me *Conn) ChangeDatabase(ctx context.Context, name string) error {
	if me.driver.ChangeDatabase == nil {
		return fmt.Errorf("%w: changing database with %s", sqlreplay.ErrNotSupported, me.driver.Name)
	}
	if err := me.driver.ChangeDatabase(ctx, me.conn, name); err != nil {
		return err
	}
	me.database = name
	return nil
}

var isolationLevels = map[sqltypes.IsolationLevel]sql.IsolationLevel{
	sqltypes.IsolationUnspecified:     sql.LevelDefault,
	sqltypes.IsolationReadUncommitted: sql.LevelReadUncommitted,
	sqltypes.IsolationReadCommitted:   sql.LevelReadCommitted,
	sqltypes.IsolationRepeatableRead:  sql.LevelRepeatableRead,
	sqltypes.IsolationSnapshot:        sql.LevelSnapshot,
	sqltypes.IsolationSerializable:    sql.LevelSerializable,
}

func (me *Conn) Begin(ctx context.Context, level sqltypes.IsolationLevel) (sqlreplay.Tx, error) {
	l, ok := isolationLevels[level]
	if !ok {
		return nil, fmt.Errorf("%w: isolation level %d", sqlreplay.ErrNotSupported, level)
	}
	tx, err := me.conn.BeginTx(ctx, &sql.TxOptions{Isolation: l})
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return tx, nil
}

type querier interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (me *Conn) querier(tx sqlreplay.Tx) (querier, error) {
	if tx == nil {
		return me.conn, nil
	}
	sqlTx, ok := tx.(*sql.Tx)
	if !ok {
		return nil, fmt.Errorf("transaction %T was not begun by this connection", tx)
	}
	return sqlTx, nil
}

func query(stmt sqlreplay.Statement) (text string, args []interface{}, err error) {
	switch stmt.Kind {
	case sqltypes.CommandText:
		text = stmt.Text
	case sqltypes.CommandTable:
		text = "SELECT * FROM " + stmt.Text
	default:
		err = fmt.Errorf("%w: %v commands", sqlreplay.ErrNotSupported, stmt.Kind)
		return
	}
	for _, p := range stmt.Parameters {
		v := p.Value
		if sqltypes.IsNull(v) {
			v = nil
		}
		if name := strings.TrimLeft(p.Name, "@:$"); name != "" {
			args = append(args, sql.Named(name, v))
		} else {
			args = append(args, v)
		}
	}
	return
}

func (me *Conn) Prepare(ctx context.Context, tx sqlreplay.Tx, stmt sqlreplay.Statement) error {
	q, err := me.querier(tx)
	if err != nil {
		return err
	}
	text, _, err := query(stmt)
	if err != nil {
		return err
	}
	s, err := q.PrepareContext(ctx, text)
	if err != nil {
		return errors.Wrap(err, "preparing")
	}
	return s.Close()
}

func (me *Conn) ExecuteReader(ctx context.Context, tx sqlreplay.Tx, stmt sqlreplay.Statement) (sqlreplay.Cursor, error) {
	q, err := me.querier(tx)
	if err != nil {
		return nil, err
	}
	text, args, err := query(stmt)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying")
	}
	return &Cursor{rows: rows}, nil
}

// ExecuteScalar gives the first column of the first row, or sqltypes.Null if
// there are no rows.
func (me *Conn) ExecuteScalar(ctx context.Context, tx sqlreplay.Tx, stmt sqlreplay.Statement) (interface{}, error) {
	cur, err := me.ExecuteReader(ctx, tx, stmt)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	ok, err := cur.Next()
	if err != nil {
		return nil, err
	}
	vs := cur.Values()
	if !ok || len(vs) == 0 {
		return sqltypes.Null, nil
	}
	return vs[0], nil
}

func (me *Conn) ExecuteNonQuery(ctx context.Context, tx sqlreplay.Tx, stmt sqlreplay.Statement) (int64, error) {
	q, err := me.querier(tx)
	if err != nil {
		return 0, err
	}
	text, args, err := query(stmt)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, text, args...)
	if err != nil {
		return 0, errors.Wrap(err, "executing")
	}
	return res.RowsAffected()
}

func (me *Conn) Close() error {
	err := me.conn.Close()
	if cerr := me.db.Close(); err == nil {
		err = cerr
	}
	return err
}
