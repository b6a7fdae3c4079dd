// Package fingerprint builds the cache key for a query: an immutable snapshot
// of the connection string, command text, command kind and input parameters at
// the moment of execution.
package fingerprint

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

var ErrUnsupportedParameterDirection = errors.New("unsupported parameter direction")

// Parameter is a snapshot of a bound parameter. Value is sqltypes.Null for a
// null, never nil.
type Parameter struct {
	Name      string
	Value     interface{}
	Type      sqltypes.DbType
	Nullable  bool
	Direction sqltypes.Direction
	Scale     uint8
	Size      int
}

type Fingerprint struct {
	connectionString string
	text             string
	kind             sqltypes.CommandKind
	params           []Parameter
	key              string
	hash             uint64
}

// CheckDirections fails with ErrUnsupportedParameterDirection naming every
// parameter that is not input-only.
func CheckDirections(params []Parameter) error {
	var bad []string
	for _, p := range params {
		if p.Direction != sqltypes.DirectionInput {
			bad = append(bad, fmt.Sprintf("%s (%v)", p.Name, p.Direction))
		}
	}
	if len(bad) != 0 {
		return fmt.Errorf("%w: only input parameters are supported: %s", ErrUnsupportedParameterDirection, strings.Join(bad, ", "))
	}
	return nil
}

// Build snapshots params. It refuses any parameter that is not input-only,
// since a recorded result cannot represent values the server writes back
// during execution.
func Build(connectionString, text string, kind sqltypes.CommandKind, params []Parameter) (ret Fingerprint, err error) {
	if err = CheckDirections(params); err != nil {
		return
	}
	ret.connectionString = connectionString
	ret.text = text
	ret.kind = kind
	ret.params = make([]Parameter, len(params))
	for i, p := range params {
		p.Value = snapshotValue(p.Value)
		ret.params[i] = p
	}
	ret.key = ret.canonicalKey()
	ret.hash = xxhash.Sum64String(ret.key)
	return
}

func snapshotValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return sqltypes.Null
	case []byte:
		return append([]byte(nil), x...)
	default:
		return v
	}
}

func (me Fingerprint) ConnectionString() string { return me.connectionString }
func (me Fingerprint) Text() string             { return me.text }
func (me Fingerprint) Kind() sqltypes.CommandKind {
	return me.kind
}

// Parameters returns a copy of the snapshots.
func (me Fingerprint) Parameters() []Parameter {
	return append([]Parameter(nil), me.params...)
}

// Key is a canonical encoding: two fingerprints are Equal exactly when their
// keys are equal.
func (me Fingerprint) Key() string { return me.key }

func (me Fingerprint) Hash() uint64 { return me.hash }

func (me Fingerprint) String() string {
	return fmt.Sprintf("%q (%v, %d params, %016x)", me.text, me.kind, len(me.params), me.hash)
}

func (me Fingerprint) Equal(other Fingerprint) bool {
	if me.connectionString != other.connectionString ||
		me.text != other.text ||
		me.kind != other.kind ||
		len(me.params) != len(other.params) {
		return false
	}
	for i := range me.params {
		if !me.params[i].equal(other.params[i]) {
			return false
		}
	}
	return true
}

func (me Parameter) equal(other Parameter) bool {
	return me.Name == other.Name &&
		valuesEqual(me.Value, other.Value) &&
		me.Type == other.Type &&
		me.Nullable == other.Nullable &&
		me.Direction == other.Direction &&
		me.Scale == other.Scale &&
		me.effectiveSize() == other.effectiveSize()
}

// effectiveSize folds every declared size that does not truncate a character
// value into the value's length. Drivers expand declared sizes for
// character types, so only a truncating size distinguishes two parameters.
// Binary sizes are compared as declared.
func (me Parameter) effectiveSize() int {
	if !me.Type.IsCharacter() {
		return me.Size
	}
	s, _ := me.Value.(string)
	n := utf8.RuneCountInString(s)
	if me.Size <= 0 || me.Size >= n {
		return n
	}
	return me.Size
}

func valuesEqual(a, b interface{}) bool {
	switch x := a.(type) {
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	if _, ok := b.([]byte); ok {
		return false
	}
	defer func() {
		// Uncomparable dynamic types are never equal.
		recover()
	}()
	return a == b
}

func (me Fingerprint) canonicalKey() string {
	var buf bytes.Buffer
	writeString(&buf, me.connectionString)
	writeString(&buf, me.text)
	writeInt(&buf, int64(me.kind))
	writeInt(&buf, int64(len(me.params)))
	for _, p := range me.params {
		writeString(&buf, p.Name)
		writeString(&buf, encodeValue(p.Value))
		writeInt(&buf, int64(p.Type))
		if p.Nullable {
			writeInt(&buf, 1)
		} else {
			writeInt(&buf, 0)
		}
		writeInt(&buf, int64(p.Direction))
		writeInt(&buf, int64(p.Scale))
		writeInt(&buf, int64(p.effectiveSize()))
	}
	return buf.String()
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt(buf, int64(len(s)))
	buf.WriteString(s)
}

func writeInt(buf *bytes.Buffer, i int64) {
	var b [binary.MaxVarintLen64]byte
	buf.Write(b[:binary.PutVarint(b[:], i)])
}

func encodeValue(v interface{}) string {
	switch x := v.(type) {
	case sqltypes.DBNull:
		return "null"
	case []byte:
		return "[]byte:" + hex.EncodeToString(x)
	case time.Time:
		return "time:" + x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
