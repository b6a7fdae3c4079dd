package sqlreplay

import (
	"io"
	"net/http"
	"reflect"
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

func mixedReader(t *testing.T) (*Host, *Reader) {
	h := startHost(t, newFakeDriver())
	cl := dial(t, h)
	r, err := openCommand(t, cl, selectMixed).ExecuteReader()
	require.NoError(t, err)
	return h, r
}

func TestReaderNullTranslation(t *testing.T) {
	_, r := mixedReader(t)
	_, err := r.Value(0)
	assert.ErrorIs(t, err, ErrNoCurrentRow)
	require.True(t, must(r.Read()))
	require.True(t, must(r.Read()))
	v, err := r.Value(1)
	require.NoError(t, err)
	assert.True(t, sqltypes.IsNull(v))
	null, err := r.IsDBNull(1)
	require.NoError(t, err)
	assert.True(t, null)
	null, err = r.IsDBNull(0)
	require.NoError(t, err)
	assert.False(t, null)
	vs, err := r.Values()
	require.NoError(t, err)
	require.Len(t, vs, 6)
	assert.True(t, sqltypes.IsNull(vs[1]))
	assert.Equal(t, int64(8), vs[0])
	_, err = r.Text(1)
	assert.ErrorIs(t, err, ErrNullValue)
	assert.False(t, must(r.Read()))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func TestReaderServesCachedRow(t *testing.T) {
	h, r := mixedReader(t)
	require.True(t, must(r.Read()))
	// Drop the server side. The cached row still answers, anything else fails.
	require.NoError(t, h.Service.DisposeReader(ReaderArgs{r.Handle()}, &struct{}{}))
	v, err := r.Value(0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
	s, err := r.Text(1)
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)
	i, err := r.Ordinal("NAME")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	_, err = r.Value(6)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = r.Read()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = r.Value(0)
	assert.ErrorIs(t, err, ErrInvalidHandle, "a failed read clears the cached row")
}

func TestReaderTypedAccessors(t *testing.T) {
	_, r := mixedReader(t)
	require.True(t, must(r.Read()))
	id, err := r.Int32(0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, id)
	id16, err := r.Int16(0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, id16)
	b, err := r.Byte(0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, b)
	f, err := r.Float64(0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, f)
	flag, err := r.Bool(3)
	require.NoError(t, err)
	assert.True(t, flag)
	c, err := r.Char(1)
	require.NoError(t, err)
	assert.Equal(t, 'h', c)
	g, err := r.Guid(4)
	require.NoError(t, err)
	assert.Equal(t, uuid.UUID(mixedGuid), g)
	_, err = r.Bool(1)
	assert.Error(t, err)
	_, err = r.DateTime(0)
	assert.Error(t, err)
	_, err = r.Int64(-1)
	assert.ErrorIs(t, err, ErrColumnOutOfRange)
	_, err = r.Int64(6)
	assert.ErrorIs(t, err, ErrColumnOutOfRange)
}

func TestReaderBuffers(t *testing.T) {
	_, r := mixedReader(t)
	require.True(t, must(r.Read()))
	n, err := r.Bytes(2, 0, nil, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)
	buf := make([]byte, 5)
	n, err = r.Bytes(2, 2, buf, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Equal(t, []byte{0, 'c', 'd', 'e', 'f'}, buf)
	n, err = r.Bytes(2, 10, buf, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	_, err = r.Bytes(2, 0, buf, 6)
	assert.ErrorIs(t, err, ErrColumnOutOfRange)

	n, err = r.Chars(1, 0, nil, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n, "counted in characters")
	runes := make([]rune, 2)
	n, err = r.Chars(1, 1, runes, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, []rune("él"), runes)

	require.True(t, must(r.Read()))
	n, err = r.Bytes(2, 0, nil, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	_, err = r.Chars(1, 0, nil, 0)
	assert.ErrorIs(t, err, ErrNullValue)
}

func TestReaderMetadata(t *testing.T) {
	_, r := mixedReader(t)
	names, err := r.FieldNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "name", "blob", "flag", "guid", "odd"}, names)
	n, err := r.FieldCount()
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	affected, err := r.RecordsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, -1, affected)
	ft, err := r.FieldType(0)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(int64(0)), ft)
	ft, err = r.FieldType(4)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(uuid.UUID{}), ft)
	ft, err = r.FieldType(2)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf([]byte(nil)), ft)
	_, err = r.FieldType(5)
	assert.Error(t, err, "complex128 is not a known type")
	dt, err := r.DataTypeName(1)
	require.NoError(t, err)
	assert.Equal(t, "TEXT", dt)
	name, err := r.Name(3)
	require.NoError(t, err)
	assert.Equal(t, "flag", name)
	ord, err := r.Ordinal("ID")
	require.NoError(t, err)
	assert.Equal(t, 0, ord)
	_, err = r.Ordinal("missing")
	assert.ErrorIs(t, err, ErrColumnOutOfRange)
	schema, err := r.SchemaTable()
	require.NoError(t, err)
	require.Len(t, schema, 6)
	assert.True(t, schema[1].Nullable)

	more, err := r.NextResult()
	require.NoError(t, err)
	require.True(t, more)
	names, err = r.FieldNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, names)
	require.True(t, must(r.Read()))
	v, err := r.Int64(0)
	require.NoError(t, err)
	assert.EqualValues(t, 99, v)
	more, err = r.NextResult()
	require.NoError(t, err)
	assert.False(t, more)

	require.NoError(t, r.Close())
	closed, err := r.IsClosed()
	require.NoError(t, err)
	assert.True(t, closed)
	_, err = r.FieldNames()
	assert.ErrorIs(t, err, ErrReaderClosed)
	require.NoError(t, r.Close())
	require.NoError(t, r.Dispose())
	assert.ErrorIs(t, r.Dispose(), ErrInvalidHandle)
}

func TestHandlesPage(t *testing.T) {
	h, _ := mixedReader(t)
	resp, err := http.Get("http://" + h.Addr().String() + HandlesPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "command: 1\nconnection: 1\nparameter: 0\nreader: 1\ntransaction: 0\n", string(b))
}
