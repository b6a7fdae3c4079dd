package sqlreplay

import (
	"reflect"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

// Reader is the client view of a server cursor. After each successful Read it
// fetches the whole row in one call and serves accessors for that row from
// memory. Anything the cached row can't answer goes to the server, so errors
// are the same either way.
type Reader struct {
	cl  *Client
	h   ReaderHandle
	row *cachedRow
}

type cachedRow struct {
	names  []string
	values []interface{}
}

func (me *cachedRow) value(i int) (interface{}, bool) {
	if me == nil || i < 0 || i >= len(me.values) {
		return nil, false
	}
	return me.values[i], true
}

func (me *cachedRow) ordinal(name string) (int, bool) {
	if me == nil {
		return -1, false
	}
	for i, n := range me.names {
		if n == name {
			return i, true
		}
	}
	for i, n := range me.names {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return -1, false
}

func (me *Reader) Handle() ReaderHandle { return me.h }

func (me *Reader) args() ReaderArgs { return ReaderArgs{me.h} }

func (me *Reader) field(i int) FieldArgs { return FieldArgs{me.h, i} }

func (me *Reader) Read() (ok bool, err error) {
	me.row = nil
	err = me.cl.Call("Read", me.args(), &ok)
	if err != nil || !ok {
		return
	}
	var rr RowReply
	if me.cl.Call("Row", me.args(), &rr) == nil && len(rr.Names) == len(rr.Values) {
		me.row = &cachedRow{rr.Names, sqltypes.ValuesFromWire(rr.Values)}
	}
	return
}

func (me *Reader) NextResult() (ok bool, err error) {
	me.row = nil
	err = me.cl.Call("NextResult", me.args(), &ok)
	return
}

func (me *Reader) Close() error {
	me.row = nil
	return me.cl.Call("CloseReader", me.args(), &struct{}{})
}

func (me *Reader) Dispose() error {
	me.row = nil
	return me.cl.Call("DisposeReader", me.args(), &struct{}{})
}

func (me *Reader) State() (ret ReaderState, err error) {
	err = me.cl.Call("ReaderState", me.args(), &ret)
	return
}

func (me *Reader) Depth() (int, error) {
	s, err := me.State()
	return s.Depth, err
}

func (me *Reader) FieldCount() (int, error) {
	s, err := me.State()
	return s.FieldCount, err
}

func (me *Reader) IsClosed() (bool, error) {
	s, err := me.State()
	return s.IsClosed, err
}

func (me *Reader) RecordsAffected() (int64, error) {
	s, err := me.State()
	return s.RecordsAffected, err
}

// Values returns the current row with sqltypes.Null for nulls.
func (me *Reader) Values() ([]interface{}, error) {
	if me.row != nil {
		return append([]interface{}(nil), me.row.values...), nil
	}
	var vs []interface{}
	if err := me.cl.Call("Values", me.args(), &vs); err != nil {
		return nil, err
	}
	return sqltypes.ValuesFromWire(vs), nil
}

func (me *Reader) FieldNames() (ret []string, err error) {
	err = me.cl.Call("FieldNames", me.args(), &ret)
	return
}

func (me *Reader) SchemaTable() (ret []sqltypes.Column, err error) {
	err = me.cl.Call("SchemaTable", me.args(), &ret)
	return
}

// Value returns sqltypes.Null for a null.
func (me *Reader) Value(i int) (interface{}, error) {
	if v, ok := me.row.value(i); ok {
		return v, nil
	}
	var reply ScalarReply
	if err := me.cl.Call("Value", me.field(i), &reply); err != nil {
		return nil, err
	}
	return sqltypes.FromWire(reply.Value), nil
}

func (me *Reader) IsDBNull(i int) (ret bool, err error) {
	if v, ok := me.row.value(i); ok {
		return sqltypes.IsNull(v), nil
	}
	err = me.cl.Call("IsDBNull", me.field(i), &ret)
	return
}

func (me *Reader) typed(i int, kind sqltypes.FieldKind) (interface{}, error) {
	if v, ok := me.row.value(i); ok {
		if ret, err := sqltypes.Convert(kind, v); err == nil {
			return ret, nil
		}
	}
	var reply ScalarReply
	if err := me.cl.Call("Field", TypedFieldArgs{me.h, i, kind}, &reply); err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (me *Reader) Bool(i int) (bool, error) {
	v, err := me.typed(i, sqltypes.FieldBool)
	ret, _ := v.(bool)
	return ret, err
}

func (me *Reader) Byte(i int) (uint8, error) {
	v, err := me.typed(i, sqltypes.FieldByte)
	ret, _ := v.(uint8)
	return ret, err
}

func (me *Reader) Char(i int) (rune, error) {
	v, err := me.typed(i, sqltypes.FieldChar)
	ret, _ := v.(rune)
	return ret, err
}

func (me *Reader) Int16(i int) (int16, error) {
	v, err := me.typed(i, sqltypes.FieldInt16)
	ret, _ := v.(int16)
	return ret, err
}

func (me *Reader) Int32(i int) (int32, error) {
	v, err := me.typed(i, sqltypes.FieldInt32)
	ret, _ := v.(int32)
	return ret, err
}

func (me *Reader) Int64(i int) (int64, error) {
	v, err := me.typed(i, sqltypes.FieldInt64)
	ret, _ := v.(int64)
	return ret, err
}

func (me *Reader) Float32(i int) (float32, error) {
	v, err := me.typed(i, sqltypes.FieldFloat32)
	ret, _ := v.(float32)
	return ret, err
}

func (me *Reader) Float64(i int) (float64, error) {
	v, err := me.typed(i, sqltypes.FieldFloat64)
	ret, _ := v.(float64)
	return ret, err
}

// Text reads a character field.
func (me *Reader) Text(i int) (string, error) {
	v, err := me.typed(i, sqltypes.FieldString)
	ret, _ := v.(string)
	return ret, err
}

func (me *Reader) DateTime(i int) (time.Time, error) {
	v, err := me.typed(i, sqltypes.FieldDateTime)
	ret, _ := v.(time.Time)
	return ret, err
}

func (me *Reader) Guid(i int) (uuid.UUID, error) {
	v, err := me.typed(i, sqltypes.FieldGuid)
	ret, _ := v.(uuid.UUID)
	return ret, err
}

func (me *Reader) Name(i int) (ret string, err error) {
	if me.row != nil && i >= 0 && i < len(me.row.names) {
		return me.row.names[i], nil
	}
	err = me.cl.Call("Name", me.field(i), &ret)
	return
}

// Ordinal finds a column by name, falling back to a case-insensitive match.
func (me *Reader) Ordinal(name string) (ret int, err error) {
	if i, ok := me.row.ordinal(name); ok {
		return i, nil
	}
	err = me.cl.Call("Ordinal", OrdinalArgs{me.h, name}, &ret)
	return
}

// FieldType resolves the server's canonical type name locally, and fails if it
// is not a known type.
func (me *Reader) FieldType(i int) (reflect.Type, error) {
	var name string
	if err := me.cl.Call("FieldType", me.field(i), &name); err != nil {
		return nil, err
	}
	return sqltypes.ResolveType(name)
}

func (me *Reader) DataTypeName(i int) (ret string, err error) {
	err = me.cl.Call("DataTypeName", me.field(i), &ret)
	return
}

// Bytes reads from fieldOffset of a binary field into buf at bufOffset, and
// returns the count read. With a nil buf it returns the field's length.
func (me *Reader) Bytes(i int, fieldOffset int64, buf []byte, bufOffset int) (int64, error) {
	args := BufferArgs{Reader: me.h, Ordinal: i, FieldOffset: fieldOffset, WantLength: buf == nil}
	if buf != nil {
		if bufOffset < 0 || bufOffset > len(buf) {
			return 0, ErrColumnOutOfRange
		}
		args.Length = len(buf) - bufOffset
	}
	var reply BufferReply
	if err := me.cl.Call("Bytes", args, &reply); err != nil {
		return 0, err
	}
	if buf != nil {
		copy(buf[bufOffset:], reply.Bytes[:reply.N])
	}
	return reply.N, nil
}

// Chars is Bytes for character fields.
func (me *Reader) Chars(i int, fieldOffset int64, buf []rune, bufOffset int) (int64, error) {
	args := BufferArgs{Reader: me.h, Ordinal: i, FieldOffset: fieldOffset, WantLength: buf == nil}
	if buf != nil {
		if bufOffset < 0 || bufOffset > len(buf) {
			return 0, ErrColumnOutOfRange
		}
		args.Length = len(buf) - bufOffset
	}
	var reply BufferReply
	if err := me.cl.Call("Chars", args, &reply); err != nil {
		return 0, err
	}
	if buf != nil {
		copy(buf[bufOffset:], reply.Chars[:reply.N])
	}
	return reply.N, nil
}
