package sqltypes

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Column describes one column of a result set. It is what the schema table is
// made of.
type Column struct {
	Name             string
	Ordinal          int
	TypeName         string
	DatabaseTypeName string
	Nullable         bool
}

var AnyType = reflect.TypeOf((*interface{})(nil)).Elem()

// Field types are sent by canonical name, and only these names resolve.
var knownTypes = map[string]reflect.Type{}

func init() {
	for _, t := range []reflect.Type{
		reflect.TypeOf(false),
		reflect.TypeOf(uint8(0)),
		reflect.TypeOf(int16(0)),
		reflect.TypeOf(int32(0)),
		reflect.TypeOf(int64(0)),
		reflect.TypeOf(float32(0)),
		reflect.TypeOf(float64(0)),
		reflect.TypeOf(""),
		reflect.TypeOf([]byte(nil)),
		reflect.TypeOf(time.Time{}),
		reflect.TypeOf(uuid.UUID{}),
		AnyType,
	} {
		knownTypes[t.String()] = t
	}
}

var nullableTypes = map[reflect.Type]reflect.Type{
	reflect.TypeOf(sql.NullBool{}):    reflect.TypeOf(false),
	reflect.TypeOf(sql.NullByte{}):    reflect.TypeOf(uint8(0)),
	reflect.TypeOf(sql.NullInt16{}):   reflect.TypeOf(int16(0)),
	reflect.TypeOf(sql.NullInt32{}):   reflect.TypeOf(int32(0)),
	reflect.TypeOf(sql.NullInt64{}):   reflect.TypeOf(int64(0)),
	reflect.TypeOf(sql.NullFloat64{}): reflect.TypeOf(float64(0)),
	reflect.TypeOf(sql.NullString{}):  reflect.TypeOf(""),
	reflect.TypeOf(sql.NullTime{}):    reflect.TypeOf(time.Time{}),
	reflect.TypeOf(sql.RawBytes{}):    reflect.TypeOf([]byte(nil)),
}

// TypeName gives the canonical name for a column's scan type. The sql.Null*
// wrappers name their underlying type, and an unknown or pointer-to-interface
// scan type is "interface {}".
func TypeName(t reflect.Type) string {
	if t == nil {
		return AnyType.String()
	}
	if u, ok := nullableTypes[t]; ok {
		t = u
	}
	if t.Kind() == reflect.Ptr && t.Elem() == AnyType {
		t = AnyType
	}
	return t.String()
}

// ResolveType maps a canonical type name back to a local type.
func ResolveType(name string) (reflect.Type, error) {
	t, ok := knownTypes[name]
	if !ok {
		return nil, fmt.Errorf("unresolvable field type %q", name)
	}
	return t, nil
}
