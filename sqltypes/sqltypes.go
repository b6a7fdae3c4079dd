// Package sqltypes holds the value-level vocabulary shared by both ends of the
// remoting protocol: the enums that describe commands and parameters, the
// database-null sentinel, column metadata, canonical type names and the typed
// value conversions behind the cursor accessors.
package sqltypes

import (
	"encoding/gob"
	"fmt"
	"time"

	uuid "github.com/satori/go.uuid"
)

func init() {
	// Concrete types that travel inside interface{} values. The basic kinds are
	// registered by gob itself.
	gob.Register(time.Time{})
	gob.Register(uuid.UUID{})
}

type CommandKind int

const (
	CommandText CommandKind = iota
	CommandStoredProcedure
	CommandTable
)

func (me CommandKind) String() string {
	switch me {
	case CommandText:
		return "text"
	case CommandStoredProcedure:
		return "stored-procedure"
	case CommandTable:
		return "table"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(me))
	}
}

// Direction of a bound parameter. Only DirectionInput can be fingerprinted.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
	DirectionInputOutput
	DirectionReturnValue
)

func (me Direction) String() string {
	switch me {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	case DirectionInputOutput:
		return "input-output"
	case DirectionReturnValue:
		return "return-value"
	default:
		return fmt.Sprintf("Direction(%d)", int(me))
	}
}

// DbType tags the database type of a parameter.
type DbType int

const (
	DbTypeObject DbType = iota
	DbTypeAnsiString
	DbTypeString
	DbTypeAnsiStringFixedLength
	DbTypeStringFixedLength
	DbTypeBinary
	DbTypeBoolean
	DbTypeByte
	DbTypeInt16
	DbTypeInt32
	DbTypeInt64
	DbTypeSingle
	DbTypeDouble
	DbTypeDecimal
	DbTypeDate
	DbTypeTime
	DbTypeDateTime
	DbTypeGuid
	DbTypeXml
)

var dbTypeNames = map[DbType]string{
	DbTypeObject:                "object",
	DbTypeAnsiString:            "ansi-string",
	DbTypeString:                "string",
	DbTypeAnsiStringFixedLength: "ansi-string-fixed-length",
	DbTypeStringFixedLength:     "string-fixed-length",
	DbTypeBinary:                "binary",
	DbTypeBoolean:               "boolean",
	DbTypeByte:                  "byte",
	DbTypeInt16:                 "int16",
	DbTypeInt32:                 "int32",
	DbTypeInt64:                 "int64",
	DbTypeSingle:                "single",
	DbTypeDouble:                "double",
	DbTypeDecimal:               "decimal",
	DbTypeDate:                  "date",
	DbTypeTime:                  "time",
	DbTypeDateTime:              "datetime",
	DbTypeGuid:                  "guid",
	DbTypeXml:                   "xml",
}

func (me DbType) String() string {
	if s, ok := dbTypeNames[me]; ok {
		return s
	}
	return fmt.Sprintf("DbType(%d)", int(me))
}

// IsCharacter reports the variable-length character types whose declared size
// drivers are allowed to expand.
func (me DbType) IsCharacter() bool {
	return me == DbTypeAnsiString || me == DbTypeString
}

// IsBinary reports the byte-array types.
func (me DbType) IsBinary() bool {
	return me == DbTypeBinary
}

// InferDbType picks the tag a parameter gets when a caller binds a bare Go value.
func InferDbType(v interface{}) DbType {
	switch v.(type) {
	case string:
		return DbTypeString
	case []byte:
		return DbTypeBinary
	case bool:
		return DbTypeBoolean
	case uint8:
		return DbTypeByte
	case int16:
		return DbTypeInt16
	case int32:
		return DbTypeInt32
	case int, int64:
		return DbTypeInt64
	case float32:
		return DbTypeSingle
	case float64:
		return DbTypeDouble
	case time.Time:
		return DbTypeDateTime
	case uuid.UUID:
		return DbTypeGuid
	default:
		return DbTypeObject
	}
}

type IsolationLevel int

const (
	IsolationUnspecified IsolationLevel = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSnapshot
	IsolationSerializable
)

type ConnectionState int

const (
	StateClosed ConnectionState = iota
	StateOpen
	StateBroken
)

func (me ConnectionState) String() string {
	switch me {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateBroken:
		return "broken"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(me))
	}
}

// UpdateRowSource says how command results are applied to a row being updated.
type UpdateRowSource int

const (
	UpdateBoth UpdateRowSource = iota
	UpdateNone
	UpdateOutputParameters
	UpdateFirstReturnedRecord
)

// RowVersion selects which version of a source row a parameter reads.
type RowVersion int

const (
	RowCurrent RowVersion = iota
	RowOriginal
	RowProposed
	RowDefault
)
