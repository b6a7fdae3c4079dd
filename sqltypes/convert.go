package sqltypes

import (
	"errors"
	"fmt"
	"math"
	"time"

	uuid "github.com/satori/go.uuid"
)

// FieldKind names a typed cursor accessor.
type FieldKind int

const (
	FieldBool FieldKind = iota
	FieldByte
	FieldChar
	FieldInt16
	FieldInt32
	FieldInt64
	FieldFloat32
	FieldFloat64
	FieldString
	FieldDateTime
	FieldGuid
	FieldBytes
)

var fieldKindNames = [...]string{
	"bool", "byte", "char", "int16", "int32", "int64", "float32", "float64",
	"string", "datetime", "guid", "bytes",
}

func (me FieldKind) String() string {
	if me >= 0 && int(me) < len(fieldKindNames) {
		return fieldKindNames[me]
	}
	return fmt.Sprintf("FieldKind(%d)", int(me))
}

var ErrNullValue = errors.New("value is null")

// Layouts tried when a date arrives as text, which is how sqlite stores it.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Convert casts a column value to the Go type behind kind. Server and client
// share it so that an accessor answered from a cached row behaves like one
// answered remotely.
func Convert(kind FieldKind, v interface{}) (ret interface{}, err error) {
	if v == nil || IsNull(v) {
		err = ErrNullValue
		return
	}
	switch kind {
	case FieldBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		}
		var i int64
		i, err = toInt64(v)
		if err == nil {
			ret = i != 0
		}
	case FieldByte:
		ret, err = toInt(v, 0, math.MaxUint8, func(i int64) interface{} { return uint8(i) })
	case FieldChar:
		switch x := v.(type) {
		case rune:
			return x, nil
		case string:
			for _, r := range x {
				return r, nil
			}
			err = errors.New("empty string has no char")
			return
		}
		err = castError(kind, v)
	case FieldInt16:
		ret, err = toInt(v, math.MinInt16, math.MaxInt16, func(i int64) interface{} { return int16(i) })
	case FieldInt32:
		ret, err = toInt(v, math.MinInt32, math.MaxInt32, func(i int64) interface{} { return int32(i) })
	case FieldInt64:
		ret, err = toInt64(v)
	case FieldFloat32:
		var f float64
		f, err = toFloat64(v)
		ret = float32(f)
	case FieldFloat64:
		ret, err = toFloat64(v)
	case FieldString:
		switch x := v.(type) {
		case string:
			ret = x
		case []byte:
			ret = string(x)
		default:
			err = castError(kind, v)
		}
	case FieldDateTime:
		switch x := v.(type) {
		case time.Time:
			ret = x
		case string:
			ret, err = parseTime(x)
		case []byte:
			ret, err = parseTime(string(x))
		default:
			err = castError(kind, v)
		}
	case FieldGuid:
		switch x := v.(type) {
		case uuid.UUID:
			ret = x
		case [16]byte:
			ret = uuid.UUID(x)
		case []byte:
			if len(x) == uuid.Size {
				ret, err = uuid.FromBytes(x)
			} else {
				ret, err = uuid.FromString(string(x))
			}
		case string:
			ret, err = uuid.FromString(x)
		default:
			err = castError(kind, v)
		}
	case FieldBytes:
		switch x := v.(type) {
		case []byte:
			ret = x
		case string:
			ret = []byte(x)
		default:
			err = castError(kind, v)
		}
	default:
		err = fmt.Errorf("unknown field kind %v", kind)
	}
	if err != nil {
		ret = nil
	}
	return
}

func castError(kind FieldKind, v interface{}) error {
	return fmt.Errorf("cannot read %T as %v", v, kind)
}

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot read %T as integer", v)
}

func toInt(v interface{}, min, max int64, conv func(int64) interface{}) (interface{}, error) {
	i, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	if i < min || i > max {
		return nil, fmt.Errorf("%d out of range [%d, %d]", i, min, max)
	}
	return conv(i), nil
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("cannot read %T as float", v)
	}
	return float64(i), nil
}

func parseTime(s string) (t time.Time, err error) {
	for _, layout := range timeLayouts {
		t, err = time.Parse(layout, s)
		if err == nil {
			return
		}
	}
	err = fmt.Errorf("cannot parse %q as datetime", s)
	return
}
