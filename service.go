package sqlreplay

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/anacrolix/sqlreplay/refs"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

const (
	DefaultConnectionTimeout = 15 * time.Second
	DefaultCommandTimeout    = 30 * time.Second
)

type Options struct {
	// Used by NewConnection when the client gives none.
	DefaultConnectionString string
	ConnectionTimeout       time.Duration
	CommandTimeout          time.Duration
}

// Service is the server side of the protocol. Its exported methods with net/rpc
// signatures are the remote operations; register it with RegisterName under
// "SQLReplay", or use a Host. Operations on different handles never contend.
// Operations on the same handle must be serialized by the caller.
type Service struct {
	driver Driver
	opts   Options

	conns   *refs.Store[ConnectionHandle, *connection]
	cmds    *refs.Store[CommandHandle, *command]
	txs     *refs.Store[TransactionHandle, *transaction]
	params  *refs.Store[ParameterHandle, *parameter]
	readers *refs.Store[ReaderHandle, *reader]
	owners  *refs.Owners[CommandHandle, ParameterHandle]
}

func NewService(d Driver, opts Options) *Service {
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = DefaultConnectionTimeout
	}
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	return &Service{
		driver:  d,
		opts:    opts,
		conns:   refs.NewStore[ConnectionHandle, *connection]("connection", newHandle[ConnectionHandle]),
		cmds:    refs.NewStore[CommandHandle, *command]("command", newHandle[CommandHandle]),
		txs:     refs.NewStore[TransactionHandle, *transaction]("transaction", newHandle[TransactionHandle]),
		params:  refs.NewStore[ParameterHandle, *parameter]("parameter", newHandle[ParameterHandle]),
		readers: refs.NewStore[ReaderHandle, *reader]("reader", newHandle[ReaderHandle]),
		owners:  refs.NewOwners[CommandHandle, ParameterHandle](),
	}
}

// HandleCounts gives the number of live handles per role. net/rpc ignores it,
// but it needs to be public for the status page.
func (me *Service) HandleCounts() map[string]int {
	return map[string]int{
		me.conns.Role():   me.conns.Len(),
		me.cmds.Role():    me.cmds.Len(),
		me.txs.Role():     me.txs.Len(),
		me.params.Role():  me.params.Len(),
		me.readers.Role(): me.readers.Len(),
	}
}

// guard turns a panic or error in a remote operation into a fault reply. It
// keeps a failing call from taking down the host or its channel.
func (me *Service) guard(op string, err *error) {
	if r := recover(); r != nil {
		log.Errorf("panic in %s: %v\n%s", op, r, debug.Stack())
		*err = fmt.Errorf("%s: panic: %v", op, r)
	}
	if *err != nil {
		log.Warningf("%s: %v", op, *err)
		*err = encodeError(*err)
	}
}

type connection struct {
	mu       sync.Mutex
	cs       string
	db       Conn
	database string
}

func (me *connection) open() (Conn, error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.db == nil {
		return nil, ErrConnectionNotOpen
	}
	return me.db, nil
}

func (me *Service) NewConnection(args NewConnectionArgs, reply *ConnectionHandle) (err error) {
	defer me.guard("NewConnection", &err)
	cs := args.ConnectionString
	if cs == "" {
		cs = me.opts.DefaultConnectionString
	}
	*reply, err = me.conns.Add(&connection{cs: cs, database: databaseName(cs)})
	return
}

func (me *Service) ConnectionString(args ConnectionArgs, reply *string) (err error) {
	defer me.guard("ConnectionString", &err)
	c, err := me.conns.Get(args.Conn)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	*reply = c.cs
	return
}

func (me *Service) SetConnectionString(args SetConnectionStringArgs, reply *struct{}) (err error) {
	defer me.guard("SetConnectionString", &err)
	c, err := me.conns.Get(args.Conn)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return fmt.Errorf("%w: connection string can only be changed while closed", ErrConnectionOpen)
	}
	c.cs = args.ConnectionString
	c.database = databaseName(c.cs)
	return
}

func (me *Service) ConnectionTimeout(args ConnectionArgs, reply *time.Duration) (err error) {
	defer me.guard("ConnectionTimeout", &err)
	if _, err = me.conns.Get(args.Conn); err != nil {
		return
	}
	*reply = me.opts.ConnectionTimeout
	return
}

func (me *Service) Database(args ConnectionArgs, reply *string) (err error) {
	defer me.guard("Database", &err)
	c, err := me.conns.Get(args.Conn)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		*reply = c.db.Database()
	} else {
		*reply = c.database
	}
	return
}

func (me *Service) State(args ConnectionArgs, reply *sqltypes.ConnectionState) (err error) {
	defer me.guard("State", &err)
	c, err := me.conns.Get(args.Conn)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		*reply = sqltypes.StateOpen
	} else {
		*reply = sqltypes.StateClosed
	}
	return
}

func (me *Service) ChangeDatabase(args ChangeDatabaseArgs, reply *struct{}) (err error) {
	defer me.guard("ChangeDatabase", &err)
	c, err := me.conns.Get(args.Conn)
	if err != nil {
		return
	}
	db, err := c.open()
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), me.opts.CommandTimeout)
	defer cancel()
	if err = db.ChangeDatabase(ctx, args.Database); err != nil {
		return
	}
	c.mu.Lock()
	c.database = args.Database
	c.mu.Unlock()
	return
}

func (me *Service) Open(args ConnectionArgs, reply *struct{}) (err error) {
	defer me.guard("Open", &err)
	c, err := me.conns.Get(args.Conn)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return ErrConnectionOpen
	}
	ctx, cancel := context.WithTimeout(context.Background(), me.opts.ConnectionTimeout)
	defer cancel()
	db, err := me.driver.Open(ctx, c.cs)
	if err != nil {
		return
	}
	c.db = db
	return
}

func (me *Service) closeConnection(c *connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	db := c.db
	c.db = nil
	return db.Close()
}

// CloseConnection is allowed on a closed connection, which can be opened again.
func (me *Service) CloseConnection(args ConnectionArgs, reply *struct{}) (err error) {
	defer me.guard("CloseConnection", &err)
	c, err := me.conns.Get(args.Conn)
	if err != nil {
		return
	}
	return me.closeConnection(c)
}

func (me *Service) DisposeConnection(args ConnectionArgs, reply *struct{}) (err error) {
	defer me.guard("DisposeConnection", &err)
	c, err := me.conns.Pop(args.Conn)
	if err != nil {
		return
	}
	return me.closeConnection(c)
}

func (me *Service) CreateCommand(args ConnectionArgs, reply *CommandHandle) (err error) {
	defer me.guard("CreateCommand", &err)
	if _, err = me.conns.Get(args.Conn); err != nil {
		return
	}
	*reply, err = me.cmds.Add(&command{info: CommandInfo{
		Conn:             args.Conn,
		Timeout:          me.opts.CommandTimeout,
		UpdatedRowSource: sqltypes.UpdateBoth,
	}})
	return
}
