package sqlreplay

import (
	"context"
	"sync"

	"github.com/anacrolix/sqlreplay/sqltypes"
)

type transaction struct {
	conn  ConnectionHandle
	level sqltypes.IsolationLevel

	mu   sync.Mutex
	db   Tx
	done bool
}

func (me *transaction) active() (Tx, error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.done {
		return nil, ErrTransactionDone
	}
	return me.db, nil
}

// finish runs f on the driver transaction if it has not already been
// committed or rolled back.
func (me *transaction) finish(f func(Tx) error) error {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.done {
		return ErrTransactionDone
	}
	me.done = true
	return f(me.db)
}

func (me *Service) BeginTransaction(args BeginArgs, reply *TransactionHandle) (err error) {
	defer me.guard("BeginTransaction", &err)
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
	tx, err := db.Begin(ctx, args.Level)
	if err != nil {
		return
	}
	*reply, err = me.txs.Add(&transaction{conn: args.Conn, level: args.Level, db: tx})
	if err != nil {
		tx.Rollback()
	}
	return
}

func (me *Service) TransactionConnection(args TransactionArgs, reply *ConnectionHandle) (err error) {
	defer me.guard("TransactionConnection", &err)
	tx, err := me.txs.Get(args.Tx)
	if err != nil {
		return
	}
	*reply = tx.conn
	return
}

func (me *Service) IsolationLevel(args TransactionArgs, reply *sqltypes.IsolationLevel) (err error) {
	defer me.guard("IsolationLevel", &err)
	tx, err := me.txs.Get(args.Tx)
	if err != nil {
		return
	}
	*reply = tx.level
	return
}

func (me *Service) Commit(args TransactionArgs, reply *struct{}) (err error) {
	defer me.guard("Commit", &err)
	tx, err := me.txs.Get(args.Tx)
	if err != nil {
		return
	}
	return tx.finish(Tx.Commit)
}

func (me *Service) Rollback(args TransactionArgs, reply *struct{}) (err error) {
	defer me.guard("Rollback", &err)
	tx, err := me.txs.Get(args.Tx)
	if err != nil {
		return
	}
	return tx.finish(Tx.Rollback)
}

// DisposeTransaction rolls back a transaction that was never completed.
func (me *Service) DisposeTransaction(args TransactionArgs, reply *struct{}) (err error) {
	defer me.guard("DisposeTransaction", &err)
	tx, err := me.txs.Pop(args.Tx)
	if err != nil {
		return
	}
	err = tx.finish(Tx.Rollback)
	if err == ErrTransactionDone {
		err = nil
	}
	return
}
