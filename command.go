package sqlreplay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

type command struct {
	mu     sync.Mutex
	info   CommandInfo
	params []ParameterHandle
	// Cancels the execution in progress, if any.
	cancel context.CancelFunc
}

func (me *Service) GetCommand(args CommandArgs, reply *CommandInfo) (err error) {
	defer me.guard("GetCommand", &err)
	cmd, err := me.cmds.Get(args.Command)
	if err != nil {
		return
	}
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	*reply = cmd.info
	return
}

// SetCommand applies the selected fields. A connection or transaction binding
// must name a live handle, or be the zero handle to clear it.
func (me *Service) SetCommand(args SetCommandArgs, reply *struct{}) (err error) {
	defer me.guard("SetCommand", &err)
	cmd, err := me.cmds.Get(args.Command)
	if err != nil {
		return
	}
	if args.Fields&CommandFieldConnection != 0 && args.Conn != NoConnection {
		if _, err = me.conns.Get(args.Conn); err != nil {
			return
		}
	}
	if args.Fields&CommandFieldTransaction != 0 && args.Tx != NoTransaction {
		if _, err = me.txs.Get(args.Tx); err != nil {
			return
		}
	}
	if args.Fields&CommandFieldTimeout != 0 && args.Timeout < 0 {
		return fmt.Errorf("negative command timeout %v", args.Timeout)
	}
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	if args.Fields&CommandFieldText != 0 {
		cmd.info.Text = args.Text
	}
	if args.Fields&CommandFieldKind != 0 {
		cmd.info.Kind = args.Kind
	}
	if args.Fields&CommandFieldTimeout != 0 {
		cmd.info.Timeout = args.Timeout
	}
	if args.Fields&CommandFieldUpdatedRowSource != 0 {
		cmd.info.UpdatedRowSource = args.UpdatedRowSource
	}
	if args.Fields&CommandFieldConnection != 0 {
		cmd.info.Conn = args.Conn
	}
	if args.Fields&CommandFieldTransaction != 0 {
		cmd.info.Tx = args.Tx
	}
	return
}

// bound is everything an execution needs, resolved from a command's handles.
type bound struct {
	cmd  *command
	conn Conn
	tx   Tx
	stmt Statement
}

func (me *Service) bind(h CommandHandle) (ret bound, err error) {
	cmd, err := me.cmds.Get(h)
	if err != nil {
		return
	}
	cmd.mu.Lock()
	info := cmd.info
	handles := append([]ParameterHandle(nil), cmd.params...)
	cmd.mu.Unlock()
	ret.cmd = cmd
	if info.Conn == NoConnection {
		err = fmt.Errorf("%w: command %v has no connection", ErrConnectionNotOpen, h)
		return
	}
	c, err := me.conns.Get(info.Conn)
	if err != nil {
		return
	}
	if ret.conn, err = c.open(); err != nil {
		return
	}
	if info.Tx != NoTransaction {
		var tx *transaction
		tx, err = me.txs.Get(info.Tx)
		if err != nil {
			return
		}
		if tx.conn != info.Conn {
			err = fmt.Errorf("transaction %v belongs to connection %v, not %v", info.Tx, tx.conn, info.Conn)
			return
		}
		if ret.tx, err = tx.active(); err != nil {
			return
		}
	}
	ret.stmt = Statement{
		Text:    info.Text,
		Kind:    info.Kind,
		Timeout: info.Timeout,
	}
	for _, ph := range handles {
		var p *parameter
		p, err = me.params.Get(ph)
		if err != nil {
			return
		}
		ret.stmt.Parameters = append(ret.stmt.Parameters, p.snapshot())
	}
	err = fingerprint.CheckDirections(ret.stmt.Parameters)
	return
}

// start gives the context for one execution. The command timeout covers only
// the call into the driver: stop must be called when that returns. cancel ends
// whatever the context still guards, such as a live cursor.
func (me *command) start(timeout time.Duration) (ctx context.Context, stop func(), cancel context.CancelFunc) {
	ctx, cancel = context.WithCancel(context.Background())
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, cancel)
	}
	me.mu.Lock()
	me.cancel = cancel
	me.mu.Unlock()
	stop = func() {
		if timer != nil {
			timer.Stop()
		}
		me.mu.Lock()
		me.cancel = nil
		me.mu.Unlock()
	}
	return
}

func (me *Service) Prepare(args CommandArgs, reply *struct{}) (err error) {
	defer me.guard("Prepare", &err)
	b, err := me.bind(args.Command)
	if err != nil {
		return
	}
	ctx, stop, cancel := b.cmd.start(b.stmt.Timeout)
	defer cancel()
	defer stop()
	return b.conn.Prepare(ctx, b.tx, b.stmt)
}

// Cancel attempts to stop the command's execution in progress. It does nothing
// if there is none.
func (me *Service) Cancel(args CommandArgs, reply *struct{}) (err error) {
	defer me.guard("Cancel", &err)
	cmd, err := me.cmds.Get(args.Command)
	if err != nil {
		return
	}
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	if cmd.cancel != nil {
		cmd.cancel()
	}
	return
}

func (me *Service) ExecuteNonQuery(args CommandArgs, reply *int64) (err error) {
	defer me.guard("ExecuteNonQuery", &err)
	b, err := me.bind(args.Command)
	if err != nil {
		return
	}
	ctx, stop, cancel := b.cmd.start(b.stmt.Timeout)
	defer cancel()
	defer stop()
	*reply, err = b.conn.ExecuteNonQuery(ctx, b.tx, b.stmt)
	return
}

func (me *Service) ExecuteScalar(args CommandArgs, reply *ScalarReply) (err error) {
	defer me.guard("ExecuteScalar", &err)
	b, err := me.bind(args.Command)
	if err != nil {
		return
	}
	ctx, stop, cancel := b.cmd.start(b.stmt.Timeout)
	defer cancel()
	defer stop()
	v, err := b.conn.ExecuteScalar(ctx, b.tx, b.stmt)
	if err != nil {
		return
	}
	reply.Value = sqltypes.ToWire(v)
	return
}

func (me *Service) ExecuteReader(args CommandArgs, reply *ReaderHandle) (err error) {
	defer me.guard("ExecuteReader", &err)
	b, err := me.bind(args.Command)
	if err != nil {
		return
	}
	ctx, stop, cancel := b.cmd.start(b.stmt.Timeout)
	cur, err := b.conn.ExecuteReader(ctx, b.tx, b.stmt)
	stop()
	if err != nil {
		cancel()
		return
	}
	*reply, err = me.readers.Add(&reader{cursor: cur, cancel: cancel})
	if err != nil {
		cur.Close()
		cancel()
	}
	return
}

func (me *Service) DisposeCommand(args CommandArgs, reply *struct{}) (err error) {
	defer me.guard("DisposeCommand", &err)
	cmd, err := me.cmds.Pop(args.Command)
	if err != nil {
		return
	}
	cmd.mu.Lock()
	if cmd.cancel != nil {
		cmd.cancel()
	}
	cmd.params = nil
	cmd.mu.Unlock()
	me.owners.ReleaseAll(args.Command, me.removeParameter)
	return
}

func (me *Service) removeParameter(h ParameterHandle) {
	me.params.Remove(h)
}
