// Package dataset holds disconnected row-set snapshots: the form in which
// reader results are recorded, persisted and replayed.
package dataset

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

type Table struct {
	Columns         []sqltypes.Column
	Rows            [][]interface{}
	RecordsAffected int64
}

// DataSet is every result set a reader produced, in order.
type DataSet struct {
	Tables []Table
}

// Source is the part of a forward-only cursor needed to drain it.
type Source interface {
	Columns() ([]sqltypes.Column, error)
	Next() (bool, error)
	Values() []interface{}
	NextResultSet() (bool, error)
	RecordsAffected() int64
}

// Fill drains src, including every further result set.
func Fill(src Source) (ret *DataSet, err error) {
	ret = &DataSet{}
	for {
		var table Table
		table.Columns, err = src.Columns()
		if err != nil {
			return
		}
		for {
			var ok bool
			ok, err = src.Next()
			if err != nil {
				return
			}
			if !ok {
				break
			}
			table.Rows = append(table.Rows, append([]interface{}(nil), src.Values()...))
		}
		table.RecordsAffected = src.RecordsAffected()
		ret.Tables = append(ret.Tables, table)
		var more bool
		more, err = src.NextResultSet()
		if err != nil || !more {
			return
		}
	}
}

func (me *DataSet) Encode() ([]byte, error) {
	wire := DataSet{Tables: make([]Table, len(me.Tables))}
	for i, t := range me.Tables {
		wt := t
		wt.Rows = make([][]interface{}, len(t.Rows))
		for j, row := range t.Rows {
			wt.Rows[j] = sqltypes.ValuesToWire(row)
		}
		wire.Tables[i] = wt
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, pkgerrors.Wrap(err, "encoding data set")
	}
	return buf.Bytes(), nil
}

func Decode(b []byte) (*DataSet, error) {
	var ret DataSet
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&ret); err != nil {
		return nil, pkgerrors.Wrap(err, "decoding data set")
	}
	for _, t := range ret.Tables {
		for _, row := range t.Rows {
			sqltypes.ValuesFromWire(row)
		}
	}
	return &ret, nil
}

var ErrClosed = errors.New("reader is closed")

// Reader is a disconnected cursor over a DataSet.
type Reader struct {
	ds     *DataSet
	table  int
	row    int
	closed bool
}

func NewReader(ds *DataSet) *Reader {
	if len(ds.Tables) == 0 {
		ds = &DataSet{Tables: []Table{{}}}
	}
	return &Reader{ds: ds, row: -1}
}

func (me *Reader) current() *Table {
	return &me.ds.Tables[me.table]
}

func (me *Reader) Columns() ([]sqltypes.Column, error) {
	if me.closed {
		return nil, ErrClosed
	}
	return me.current().Columns, nil
}

func (me *Reader) Next() (bool, error) {
	if me.closed {
		return false, ErrClosed
	}
	t := me.current()
	if me.row < len(t.Rows) {
		me.row++
	}
	return me.row < len(t.Rows), nil
}

func (me *Reader) Values() []interface{} {
	if me.closed {
		return nil
	}
	t := me.current()
	if me.row < 0 || me.row >= len(t.Rows) {
		return nil
	}
	return t.Rows[me.row]
}

func (me *Reader) NextResultSet() (bool, error) {
	if me.closed {
		return false, ErrClosed
	}
	if me.table+1 >= len(me.ds.Tables) {
		return false, nil
	}
	me.table++
	me.row = -1
	return true, nil
}

func (me *Reader) RecordsAffected() int64 {
	return me.current().RecordsAffected
}

func (me *Reader) Depth() int { return 0 }

func (me *Reader) IsClosed() bool { return me.closed }

func (me *Reader) Close() error {
	me.closed = true
	return nil
}

func (me *Reader) String() string {
	return fmt.Sprintf("dataset.Reader(table %d/%d, row %d)", me.table, len(me.ds.Tables), me.row)
}
