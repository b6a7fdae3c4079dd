// Package sqlreplay exposes database connections, commands, transactions,
// parameters and readers that live in a server process, addressed by opaque
// handles over net/rpc. Every command the server executes can be fingerprinted
// and recorded, so that a later server in replay mode returns the same results
// without a database. The package provides the server Service and Host, the
// Client with its proxies, and a database/sql driver over the Client.
package sqlreplay

import (
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

// The zero value of every handle type means "no binding".
type (
	ConnectionHandle  uuid.UUID
	CommandHandle     uuid.UUID
	TransactionHandle uuid.UUID
	ParameterHandle   uuid.UUID
	ReaderHandle      uuid.UUID
)

var (
	NoConnection  ConnectionHandle
	NoTransaction TransactionHandle
)

func (me ConnectionHandle) String() string  { return uuid.UUID(me).String() }
func (me CommandHandle) String() string     { return uuid.UUID(me).String() }
func (me TransactionHandle) String() string { return uuid.UUID(me).String() }
func (me ParameterHandle) String() string   { return uuid.UUID(me).String() }
func (me ReaderHandle) String() string      { return uuid.UUID(me).String() }

func newHandle[H ~[uuid.Size]byte]() H {
	return H(uuid.NewV4())
}

const serviceName = "SQLReplay"

type NewConnectionArgs struct {
	ConnectionString string
}

type ConnectionArgs struct {
	Conn ConnectionHandle
}

type SetConnectionStringArgs struct {
	Conn             ConnectionHandle
	ConnectionString string
}

type ChangeDatabaseArgs struct {
	Conn     ConnectionHandle
	Database string
}

type BeginArgs struct {
	Conn  ConnectionHandle
	Level sqltypes.IsolationLevel
}

type CommandArgs struct {
	Command CommandHandle
}

type CommandInfo struct {
	Text             string
	Kind             sqltypes.CommandKind
	Timeout          time.Duration
	UpdatedRowSource sqltypes.UpdateRowSource
	Conn             ConnectionHandle
	Tx               TransactionHandle
}

// CommandFields selects which CommandInfo fields SetCommand applies.
type CommandFields uint

const (
	CommandFieldText CommandFields = 1 << iota
	CommandFieldKind
	CommandFieldTimeout
	CommandFieldUpdatedRowSource
	CommandFieldConnection
	CommandFieldTransaction
)

type SetCommandArgs struct {
	Command CommandHandle
	Fields  CommandFields
	CommandInfo
}

type ScalarReply struct {
	Value interface{}
}

type ParameterArgs struct {
	Command CommandHandle
	Param   ParameterHandle
}

type IndexArgs struct {
	Command CommandHandle
	Index   int
}

type NameArgs struct {
	Command CommandHandle
	Name    string
}

type InsertParameterArgs struct {
	Command CommandHandle
	Index   int
	Param   ParameterHandle
}

type SetParameterNamedArgs struct {
	Command CommandHandle
	Name    string
	Param   ParameterHandle
}

type ParameterHandleArgs struct {
	Param ParameterHandle
}

// ParameterDescriptor is every property of a bound parameter. Value is nil on
// the wire for a database null.
type ParameterDescriptor struct {
	Name                    string
	Direction               sqltypes.Direction
	Type                    sqltypes.DbType
	Precision               uint8
	Scale                   uint8
	Size                    int
	Nullable                bool
	SourceColumn            string
	SourceColumnNullMapping bool
	SourceVersion           sqltypes.RowVersion
	Value                   interface{}
}

// ParameterFields selects which ParameterDescriptor fields SetParameter
// applies.
type ParameterFields uint

const (
	ParameterFieldName ParameterFields = 1 << iota
	ParameterFieldDirection
	ParameterFieldType
	ParameterFieldPrecision
	ParameterFieldScale
	ParameterFieldSize
	ParameterFieldNullable
	ParameterFieldSourceColumn
	ParameterFieldSourceColumnNullMapping
	ParameterFieldSourceVersion
	ParameterFieldValue

	AllParameterFields = ParameterFieldValue<<1 - 1
)

type SetParameterArgs struct {
	Param  ParameterHandle
	Fields ParameterFields
	ParameterDescriptor
}

type TransactionArgs struct {
	Tx TransactionHandle
}

type ReaderArgs struct {
	Reader ReaderHandle
}

type ReaderState struct {
	Depth           int
	FieldCount      int
	IsClosed        bool
	RecordsAffected int64
}

// RowReply is the current row with its column names, positionally.
type RowReply struct {
	Names  []string
	Values []interface{}
}

type FieldArgs struct {
	Reader  ReaderHandle
	Ordinal int
}

type TypedFieldArgs struct {
	Reader  ReaderHandle
	Ordinal int
	Kind    sqltypes.FieldKind
}

type OrdinalArgs struct {
	Reader ReaderHandle
	Name   string
}

// BufferArgs reads part of a binary or character field. With WantLength the
// reply carries only the field's total length.
type BufferArgs struct {
	Reader      ReaderHandle
	Ordinal     int
	FieldOffset int64
	Length      int
	WantLength  bool
}

type BufferReply struct {
	N     int64
	Bytes []byte
	Chars []rune
}
