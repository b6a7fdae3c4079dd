package sqlreplay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

type reader struct {
	mu     sync.Mutex
	cursor Cursor
	cancel context.CancelFunc
	hasRow bool
}

func (me *reader) close() error {
	if me.cursor.IsClosed() {
		return nil
	}
	err := me.cursor.Close()
	me.cancel()
	me.hasRow = false
	return err
}

func (me *reader) columns() ([]sqltypes.Column, error) {
	if me.cursor.IsClosed() {
		return nil, ErrReaderClosed
	}
	return me.cursor.Columns()
}

func (me *reader) column(i int) (c sqltypes.Column, err error) {
	cols, err := me.columns()
	if err != nil {
		return
	}
	if i < 0 || i >= len(cols) {
		err = fmt.Errorf("%w: ordinal %d, reader has %d columns", ErrColumnOutOfRange, i, len(cols))
		return
	}
	c = cols[i]
	return
}

func (me *reader) row() ([]interface{}, error) {
	if me.cursor.IsClosed() {
		return nil, ErrReaderClosed
	}
	if !me.hasRow {
		return nil, ErrNoCurrentRow
	}
	return me.cursor.Values(), nil
}

func (me *reader) value(i int) (interface{}, error) {
	if _, err := me.column(i); err != nil {
		return nil, err
	}
	row, err := me.row()
	if err != nil {
		return nil, err
	}
	if i >= len(row) {
		return nil, fmt.Errorf("%w: ordinal %d, row has %d values", ErrColumnOutOfRange, i, len(row))
	}
	return row[i], nil
}

// ordinal prefers an exact name match, then a case-insensitive one.
func (me *reader) ordinal(name string) (int, error) {
	cols, err := me.columns()
	if err != nil {
		return -1, err
	}
	fold := -1
	for i, c := range cols {
		if c.Name == name {
			return i, nil
		}
		if fold < 0 && strings.EqualFold(c.Name, name) {
			fold = i
		}
	}
	if fold < 0 {
		return -1, fmt.Errorf("%w: no column named %q", ErrColumnOutOfRange, name)
	}
	return fold, nil
}

// withReader runs f holding the reader's lock.
func (me *Service) withReader(h ReaderHandle, f func(r *reader) error) error {
	r, err := me.readers.Get(h)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return f(r)
}

func (me *Service) Read(args ReaderArgs, reply *bool) (err error) {
	defer me.guard("Read", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		ok, err := r.cursor.Next()
		r.hasRow = ok && err == nil
		*reply = r.hasRow
		return err
	})
}

func (me *Service) NextResult(args ReaderArgs, reply *bool) (err error) {
	defer me.guard("NextResult", &err)
	return me.withReader(args.Reader, func(r *reader) (err error) {
		r.hasRow = false
		*reply, err = r.cursor.NextResultSet()
		return
	})
}

func (me *Service) CloseReader(args ReaderArgs, reply *struct{}) (err error) {
	defer me.guard("CloseReader", &err)
	return me.withReader(args.Reader, (*reader).close)
}

func (me *Service) DisposeReader(args ReaderArgs, reply *struct{}) (err error) {
	defer me.guard("DisposeReader", &err)
	r, err := me.readers.Pop(args.Reader)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.close()
}

func (me *Service) ReaderState(args ReaderArgs, reply *ReaderState) (err error) {
	defer me.guard("ReaderState", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		reply.Depth = r.cursor.Depth()
		reply.IsClosed = r.cursor.IsClosed()
		reply.RecordsAffected = r.cursor.RecordsAffected()
		if !reply.IsClosed {
			cols, err := r.cursor.Columns()
			if err != nil {
				return err
			}
			reply.FieldCount = len(cols)
		}
		return nil
	})
}

func (me *Service) Values(args ReaderArgs, reply *[]interface{}) (err error) {
	defer me.guard("Values", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		row, err := r.row()
		if err != nil {
			return err
		}
		*reply = sqltypes.ValuesToWire(row)
		return nil
	})
}

// Row gives the current row and the column names in one call, for clients that
// cache it.
func (me *Service) Row(args ReaderArgs, reply *RowReply) (err error) {
	defer me.guard("Row", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		cols, err := r.columns()
		if err != nil {
			return err
		}
		row, err := r.row()
		if err != nil {
			return err
		}
		reply.Names = make([]string, len(cols))
		for i, c := range cols {
			reply.Names[i] = c.Name
		}
		reply.Values = sqltypes.ValuesToWire(row)
		return nil
	})
}

func (me *Service) FieldNames(args ReaderArgs, reply *[]string) (err error) {
	defer me.guard("FieldNames", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		cols, err := r.columns()
		if err != nil {
			return err
		}
		for _, c := range cols {
			*reply = append(*reply, c.Name)
		}
		return nil
	})
}

func (me *Service) SchemaTable(args ReaderArgs, reply *[]sqltypes.Column) (err error) {
	defer me.guard("SchemaTable", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		cols, err := r.columns()
		*reply = append([]sqltypes.Column(nil), cols...)
		return err
	})
}

func (me *Service) IsDBNull(args FieldArgs, reply *bool) (err error) {
	defer me.guard("IsDBNull", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		v, err := r.value(args.Ordinal)
		*reply = sqltypes.IsNull(v)
		return err
	})
}

func (me *Service) Value(args FieldArgs, reply *ScalarReply) (err error) {
	defer me.guard("Value", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		v, err := r.value(args.Ordinal)
		reply.Value = sqltypes.ToWire(v)
		return err
	})
}

// Field converts the value to the requested kind. A null fails with
// ErrNullValue.
func (me *Service) Field(args TypedFieldArgs, reply *ScalarReply) (err error) {
	defer me.guard("Field", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		v, err := r.value(args.Ordinal)
		if err != nil {
			return err
		}
		reply.Value, err = sqltypes.Convert(args.Kind, v)
		return err
	})
}

func (me *Service) Name(args FieldArgs, reply *string) (err error) {
	defer me.guard("Name", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		c, err := r.column(args.Ordinal)
		*reply = c.Name
		return err
	})
}

func (me *Service) Ordinal(args OrdinalArgs, reply *int) (err error) {
	defer me.guard("Ordinal", &err)
	return me.withReader(args.Reader, func(r *reader) (err error) {
		*reply, err = r.ordinal(args.Name)
		return
	})
}

// FieldType gives the canonical name of the column's type.
func (me *Service) FieldType(args FieldArgs, reply *string) (err error) {
	defer me.guard("FieldType", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		c, err := r.column(args.Ordinal)
		*reply = c.TypeName
		return err
	})
}

func (me *Service) DataTypeName(args FieldArgs, reply *string) (err error) {
	defer me.guard("DataTypeName", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		c, err := r.column(args.Ordinal)
		*reply = c.DatabaseTypeName
		return err
	})
}

// window is the part of a field of length n that a buffered read covers.
func window(n int64, args BufferArgs) (from, to int64, err error) {
	if args.FieldOffset < 0 || args.Length < 0 {
		err = fmt.Errorf("negative field offset %d or length %d", args.FieldOffset, args.Length)
		return
	}
	from = min(args.FieldOffset, n)
	to = min(from+int64(args.Length), n)
	return
}

func (me *Service) Bytes(args BufferArgs, reply *BufferReply) (err error) {
	defer me.guard("Bytes", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		v, err := r.value(args.Ordinal)
		if err != nil {
			return err
		}
		b, err := sqltypes.Convert(sqltypes.FieldBytes, v)
		if err != nil {
			return err
		}
		data := b.([]byte)
		if args.WantLength {
			reply.N = int64(len(data))
			return nil
		}
		from, to, err := window(int64(len(data)), args)
		if err != nil {
			return err
		}
		reply.Bytes = data[from:to]
		reply.N = to - from
		return nil
	})
}

func (me *Service) Chars(args BufferArgs, reply *BufferReply) (err error) {
	defer me.guard("Chars", &err)
	return me.withReader(args.Reader, func(r *reader) error {
		v, err := r.value(args.Ordinal)
		if err != nil {
			return err
		}
		s, err := sqltypes.Convert(sqltypes.FieldString, v)
		if err != nil {
			return err
		}
		data := []rune(s.(string))
		if args.WantLength {
			reply.N = int64(len(data))
			return nil
		}
		from, to, err := window(int64(len(data)), args)
		if err != nil {
			return err
		}
		reply.Chars = data[from:to]
		reply.N = to - from
		return nil
	})
}
