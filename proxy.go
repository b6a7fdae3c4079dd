package sqlreplay

import (
	"time"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

// Connection is the client view of a server connection.
type Connection struct {
	cl *Client
	h  ConnectionHandle
}

// NewConnection creates a closed connection. An empty connection string uses
// the server's default.
func (me *Client) NewConnection(connectionString string) (ret *Connection, err error) {
	var h ConnectionHandle
	err = me.Call("NewConnection", NewConnectionArgs{connectionString}, &h)
	if err != nil {
		return
	}
	me.conns.Store(h, struct{}{})
	ret = &Connection{me, h}
	return
}

// Connection wraps an existing handle.
func (me *Client) Connection(h ConnectionHandle) *Connection {
	return &Connection{me, h}
}

func (me *Connection) Handle() ConnectionHandle { return me.h }

func (me *Connection) args() ConnectionArgs { return ConnectionArgs{me.h} }

func (me *Connection) ConnectionString() (ret string, err error) {
	err = me.cl.Call("ConnectionString", me.args(), &ret)
	return
}

func (me *Connection) SetConnectionString(cs string) error {
	return me.cl.Call("SetConnectionString", SetConnectionStringArgs{me.h, cs}, &struct{}{})
}

func (me *Connection) ConnectionTimeout() (ret time.Duration, err error) {
	err = me.cl.Call("ConnectionTimeout", me.args(), &ret)
	return
}

func (me *Connection) Database() (ret string, err error) {
	err = me.cl.Call("Database", me.args(), &ret)
	return
}

func (me *Connection) State() (ret sqltypes.ConnectionState, err error) {
	err = me.cl.Call("State", me.args(), &ret)
	return
}

func (me *Connection) ChangeDatabase(name string) error {
	return me.cl.Call("ChangeDatabase", ChangeDatabaseArgs{me.h, name}, &struct{}{})
}

func (me *Connection) Open() error {
	return me.cl.Call("Open", me.args(), &struct{}{})
}

func (me *Connection) Close() error {
	return me.cl.Call("CloseConnection", me.args(), &struct{}{})
}

func (me *Connection) Dispose() error {
	me.cl.conns.Delete(me.h)
	return me.cl.Call("DisposeConnection", me.args(), &struct{}{})
}

func (me *Connection) BeginTransaction(level sqltypes.IsolationLevel) (ret *Transaction, err error) {
	var h TransactionHandle
	err = me.cl.Call("BeginTransaction", BeginArgs{me.h, level}, &h)
	if err != nil {
		return
	}
	ret = &Transaction{me.cl, h}
	return
}

func (me *Connection) CreateCommand() (ret *Command, err error) {
	var h CommandHandle
	err = me.cl.Call("CreateCommand", me.args(), &h)
	if err != nil {
		return
	}
	ret = &Command{me.cl, h}
	return
}

type Transaction struct {
	cl *Client
	h  TransactionHandle
}

func (me *Transaction) Handle() TransactionHandle { return me.h }

func (me *Transaction) args() TransactionArgs { return TransactionArgs{me.h} }

func (me *Transaction) Connection() (ret *Connection, err error) {
	var h ConnectionHandle
	err = me.cl.Call("TransactionConnection", me.args(), &h)
	if err != nil {
		return
	}
	ret = &Connection{me.cl, h}
	return
}

func (me *Transaction) IsolationLevel() (ret sqltypes.IsolationLevel, err error) {
	err = me.cl.Call("IsolationLevel", me.args(), &ret)
	return
}

func (me *Transaction) Commit() error {
	return me.cl.Call("Commit", me.args(), &struct{}{})
}

func (me *Transaction) Rollback() error {
	return me.cl.Call("Rollback", me.args(), &struct{}{})
}

// Dispose rolls back the transaction if it was not completed.
func (me *Transaction) Dispose() error {
	return me.cl.Call("DisposeTransaction", me.args(), &struct{}{})
}

type Command struct {
	cl *Client
	h  CommandHandle
}

func (me *Command) Handle() CommandHandle { return me.h }

func (me *Command) args() CommandArgs { return CommandArgs{me.h} }

// Info fetches every property of the command in one call.
func (me *Command) Info() (ret CommandInfo, err error) {
	err = me.cl.Call("GetCommand", me.args(), &ret)
	return
}

func (me *Command) set(fields CommandFields, info CommandInfo) error {
	return me.cl.Call("SetCommand", SetCommandArgs{me.h, fields, info}, &struct{}{})
}

func (me *Command) Text() (string, error) {
	info, err := me.Info()
	return info.Text, err
}

func (me *Command) SetText(text string) error {
	return me.set(CommandFieldText, CommandInfo{Text: text})
}

func (me *Command) Kind() (sqltypes.CommandKind, error) {
	info, err := me.Info()
	return info.Kind, err
}

func (me *Command) SetKind(kind sqltypes.CommandKind) error {
	return me.set(CommandFieldKind, CommandInfo{Kind: kind})
}

func (me *Command) Timeout() (time.Duration, error) {
	info, err := me.Info()
	return info.Timeout, err
}

// SetTimeout limits each execution. Zero means no limit.
func (me *Command) SetTimeout(d time.Duration) error {
	return me.set(CommandFieldTimeout, CommandInfo{Timeout: d})
}

func (me *Command) UpdatedRowSource() (sqltypes.UpdateRowSource, error) {
	info, err := me.Info()
	return info.UpdatedRowSource, err
}

func (me *Command) SetUpdatedRowSource(v sqltypes.UpdateRowSource) error {
	return me.set(CommandFieldUpdatedRowSource, CommandInfo{UpdatedRowSource: v})
}

// Connection returns nil if the command is not bound to one.
func (me *Command) Connection() (*Connection, error) {
	info, err := me.Info()
	if err != nil || info.Conn == NoConnection {
		return nil, err
	}
	return &Connection{me.cl, info.Conn}, nil
}

// SetConnection binds the command to c, or unbinds it if c is nil.
func (me *Command) SetConnection(c *Connection) error {
	h := NoConnection
	if c != nil {
		h = c.h
	}
	return me.set(CommandFieldConnection, CommandInfo{Conn: h})
}

// Transaction returns nil if the command is not bound to one.
func (me *Command) Transaction() (*Transaction, error) {
	info, err := me.Info()
	if err != nil || info.Tx == NoTransaction {
		return nil, err
	}
	return &Transaction{me.cl, info.Tx}, nil
}

// SetTransaction binds the command to tx, or unbinds it if tx is nil.
func (me *Command) SetTransaction(tx *Transaction) error {
	h := NoTransaction
	if tx != nil {
		h = tx.h
	}
	return me.set(CommandFieldTransaction, CommandInfo{Tx: h})
}

func (me *Command) Prepare() error {
	return me.cl.Call("Prepare", me.args(), &struct{}{})
}

func (me *Command) Cancel() error {
	return me.cl.Call("Cancel", me.args(), &struct{}{})
}

// Dispose destroys the command and every parameter it created.
func (me *Command) Dispose() error {
	return me.cl.Call("DisposeCommand", me.args(), &struct{}{})
}

func (me *Command) ExecuteNonQuery() (ret int64, err error) {
	err = me.cl.Call("ExecuteNonQuery", me.args(), &ret)
	return
}

// ExecuteScalar returns sqltypes.Null for a null result.
func (me *Command) ExecuteScalar() (interface{}, error) {
	var reply ScalarReply
	if err := me.cl.Call("ExecuteScalar", me.args(), &reply); err != nil {
		return nil, err
	}
	return sqltypes.FromWire(reply.Value), nil
}

func (me *Command) ExecuteReader() (ret *Reader, err error) {
	var h ReaderHandle
	err = me.cl.Call("ExecuteReader", me.args(), &h)
	if err != nil {
		return
	}
	ret = &Reader{cl: me.cl, h: h}
	return
}

// CreateParameter makes an input parameter owned by this command. Add it to
// Parameters to bind it.
func (me *Command) CreateParameter() (ret *Parameter, err error) {
	var h ParameterHandle
	err = me.cl.Call("CreateParameter", me.args(), &h)
	if err != nil {
		return
	}
	ret = &Parameter{me.cl, h}
	return
}

func (me *Command) Parameters() *ParameterSet {
	return &ParameterSet{me.cl, me.h}
}

type Parameter struct {
	cl *Client
	h  ParameterHandle
}

func (me *Parameter) Handle() ParameterHandle { return me.h }

// Descriptor fetches every property. Value is sqltypes.Null for a null.
func (me *Parameter) Descriptor() (ret ParameterDescriptor, err error) {
	err = me.cl.Call("GetParameter", ParameterHandleArgs{me.h}, &ret)
	ret.Value = sqltypes.FromWire(ret.Value)
	return
}

// Update applies the selected fields of d.
func (me *Parameter) Update(fields ParameterFields, d ParameterDescriptor) error {
	d.Value = sqltypes.ToWire(d.Value)
	return me.cl.Call("SetParameter", SetParameterArgs{me.h, fields, d}, &struct{}{})
}

func (me *Parameter) SetName(name string) error {
	return me.Update(ParameterFieldName, ParameterDescriptor{Name: name})
}

func (me *Parameter) SetValue(v interface{}) error {
	return me.Update(ParameterFieldValue, ParameterDescriptor{Value: v})
}

func (me *Parameter) SetDirection(d sqltypes.Direction) error {
	return me.Update(ParameterFieldDirection, ParameterDescriptor{Direction: d})
}

func (me *Parameter) SetDbType(t sqltypes.DbType) error {
	return me.Update(ParameterFieldType, ParameterDescriptor{Type: t})
}

func (me *Parameter) SetSize(size int) error {
	return me.Update(ParameterFieldSize, ParameterDescriptor{Size: size})
}

// ParameterSet is a command's parameter collection. Parameters passed in must
// have been created by the same command.
type ParameterSet struct {
	cl  *Client
	cmd CommandHandle
}

func (me *ParameterSet) param(h ParameterHandle) *Parameter {
	return &Parameter{me.cl, h}
}

func (me *ParameterSet) Add(p *Parameter) (ret int, err error) {
	err = me.cl.Call("AddParameter", ParameterArgs{me.cmd, p.h}, &ret)
	return
}

func (me *ParameterSet) Insert(i int, p *Parameter) error {
	return me.cl.Call("InsertParameter", InsertParameterArgs{me.cmd, i, p.h}, &struct{}{})
}

func (me *ParameterSet) Remove(p *Parameter) error {
	return me.cl.Call("RemoveParameter", ParameterArgs{me.cmd, p.h}, &struct{}{})
}

func (me *ParameterSet) RemoveAt(i int) error {
	return me.cl.Call("RemoveParameterAt", IndexArgs{me.cmd, i}, &struct{}{})
}

func (me *ParameterSet) RemoveNamed(name string) error {
	return me.cl.Call("RemoveParameterNamed", NameArgs{me.cmd, name}, &struct{}{})
}

// Clear empties the collection and destroys every parameter the command
// created.
func (me *ParameterSet) Clear() error {
	return me.cl.Call("ClearParameters", CommandArgs{me.cmd}, &struct{}{})
}

func (me *ParameterSet) Count() (ret int, err error) {
	err = me.cl.Call("ParameterCount", CommandArgs{me.cmd}, &ret)
	return
}

func (me *ParameterSet) list(method string) (ret []*Parameter, err error) {
	var hs []ParameterHandle
	err = me.cl.Call(method, CommandArgs{me.cmd}, &hs)
	for _, h := range hs {
		ret = append(ret, me.param(h))
	}
	return
}

// All lists the collection in order.
func (me *ParameterSet) All() ([]*Parameter, error) {
	return me.list("Parameters")
}

// Owned lists every parameter the command created, in collection or not.
func (me *ParameterSet) Owned() ([]*Parameter, error) {
	return me.list("OwnedParameters")
}

func (me *ParameterSet) Contains(p *Parameter) (ret bool, err error) {
	err = me.cl.Call("ContainsParameter", ParameterArgs{me.cmd, p.h}, &ret)
	return
}

func (me *ParameterSet) ContainsNamed(name string) (ret bool, err error) {
	err = me.cl.Call("ContainsParameterNamed", NameArgs{me.cmd, name}, &ret)
	return
}

// IndexOf returns -1 if p is not in the collection.
func (me *ParameterSet) IndexOf(p *Parameter) (ret int, err error) {
	err = me.cl.Call("IndexOfParameter", ParameterArgs{me.cmd, p.h}, &ret)
	return
}

func (me *ParameterSet) IndexOfNamed(name string) (ret int, err error) {
	err = me.cl.Call("IndexOfParameterNamed", NameArgs{me.cmd, name}, &ret)
	return
}

func (me *ParameterSet) At(i int) (*Parameter, error) {
	var h ParameterHandle
	if err := me.cl.Call("ParameterAt", IndexArgs{me.cmd, i}, &h); err != nil {
		return nil, err
	}
	return me.param(h), nil
}

func (me *ParameterSet) SetAt(i int, p *Parameter) error {
	return me.cl.Call("SetParameterAt", InsertParameterArgs{me.cmd, i, p.h}, &struct{}{})
}

func (me *ParameterSet) Named(name string) (*Parameter, error) {
	var h ParameterHandle
	if err := me.cl.Call("ParameterNamed", NameArgs{me.cmd, name}, &h); err != nil {
		return nil, err
	}
	return me.param(h), nil
}

func (me *ParameterSet) SetNamed(name string, p *Parameter) error {
	return me.cl.Call("SetParameterNamed", SetParameterNamedArgs{me.cmd, name, p.h}, &struct{}{})
}
