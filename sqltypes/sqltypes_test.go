package sqltypes

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertIntegerNarrowing(t *testing.T) {
	v, err := Convert(FieldInt32, int64(42))
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)
	_, err = Convert(FieldInt16, int64(1<<20))
	assert.Error(t, err)
	v, err = Convert(FieldBool, int64(1))
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestConvertNull(t *testing.T) {
	_, err := Convert(FieldString, Null)
	assert.Equal(t, ErrNullValue, err)
	_, err = Convert(FieldInt64, nil)
	assert.Equal(t, ErrNullValue, err)
}

func TestConvertDateTimeFromText(t *testing.T) {
	v, err := Convert(FieldDateTime, "2016-03-15 20:05:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 3, 15, 20, 5, 5, 0, time.UTC), v)
}

func TestConvertGuid(t *testing.T) {
	g := uuid.NewV4()
	v, err := Convert(FieldGuid, g.String())
	require.NoError(t, err)
	assert.Equal(t, g, v)
	v, err = Convert(FieldGuid, g.Bytes())
	require.NoError(t, err)
	assert.Equal(t, g, v)
}

func TestTypeNameRoundTrip(t *testing.T) {
	for _, st := range []reflect.Type{
		reflect.TypeOf(sql.NullInt64{}),
		reflect.TypeOf(sql.NullString{}),
		reflect.TypeOf(sql.RawBytes{}),
		reflect.TypeOf(new(interface{})),
		reflect.TypeOf(time.Time{}),
	} {
		rt, err := ResolveType(TypeName(st))
		require.NoError(t, err, st)
		assert.NotNil(t, rt)
	}
	assert.Equal(t, "int64", TypeName(reflect.TypeOf(sql.NullInt64{})))
	_, err := ResolveType("chan int")
	assert.Error(t, err)
}

func TestWireNullMarker(t *testing.T) {
	in := []interface{}{int64(1), Null, "a"}
	wire := ValuesToWire(in)
	assert.Nil(t, wire[1])
	assert.True(t, IsNull(in[1]), "input must not be mutated")
	assert.Equal(t, in, ValuesFromWire(wire))
}
