package dbsql

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/anacrolix/sqlreplay"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

// Cursor reads *sql.Rows. Column metadata is taken once per result set.
type Cursor struct {
	rows    *sql.Rows
	columns []sqltypes.Column
	values  []interface{}
	closed  bool
}

var _ sqlreplay.Cursor = (*Cursor)(nil)

func (me *Cursor) Columns() ([]sqltypes.Column, error) {
	if me.closed {
		return nil, sqlreplay.ErrReaderClosed
	}
	if me.columns != nil {
		return me.columns, nil
	}
	cts, err := me.rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, "getting column types")
	}
	me.columns = make([]sqltypes.Column, len(cts))
	for i, ct := range cts {
		nullable, _ := ct.Nullable()
		me.columns[i] = sqltypes.Column{
			Name:             ct.Name(),
			Ordinal:          i,
			TypeName:         sqltypes.TypeName(ct.ScanType()),
			DatabaseTypeName: ct.DatabaseTypeName(),
			Nullable:         nullable,
		}
	}
	return me.columns, nil
}

func (me *Cursor) Next() (bool, error) {
	me.values = nil
	if me.closed {
		return false, sqlreplay.ErrReaderClosed
	}
	if !me.rows.Next() {
		return false, me.rows.Err()
	}
	cols, err := me.Columns()
	if err != nil {
		return false, err
	}
	vs := make([]interface{}, len(cols))
	dest := make([]interface{}, len(cols))
	for i := range dest {
		dest[i] = &vs[i]
	}
	if err := me.rows.Scan(dest...); err != nil {
		return false, errors.Wrap(err, "scanning row")
	}
	for i, v := range vs {
		switch x := v.(type) {
		case nil:
			vs[i] = sqltypes.Null
		case []byte:
			vs[i] = append([]byte(nil), x...)
		}
	}
	me.values = vs
	return true, nil
}

func (me *Cursor) Values() []interface{} {
	return me.values
}

func (me *Cursor) NextResultSet() (bool, error) {
	me.values = nil
	if me.closed {
		return false, sqlreplay.ErrReaderClosed
	}
	if !me.rows.NextResultSet() {
		return false, me.rows.Err()
	}
	me.columns = nil
	return true, nil
}

// RecordsAffected is not available from database/sql rows.
func (me *Cursor) RecordsAffected() int64 {
	return -1
}

func (me *Cursor) Depth() int {
	return 0
}

func (me *Cursor) IsClosed() bool {
	return me.closed
}

func (me *Cursor) Close() error {
	if me.closed {
		return nil
	}
	me.closed = true
	me.values = nil
	return me.rows.Close()
}
