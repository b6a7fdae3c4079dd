package sqlreplay

import (
	"context"
	"time"

	"github.com/anacrolix/sqlreplay/dataset"
	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

// Driver is the database the Service executes against. Implementations need not
// be safe for concurrent use of a single Conn: callers serialize operations on a
// handle.
type Driver interface {
	Open(ctx context.Context, connectionString string) (Conn, error)
}

// Conn is an open database connection. tx is nil outside a transaction, and
// otherwise a Tx this Conn's Begin returned.
type Conn interface {
	Database() string
	ChangeDatabase(ctx context.Context, name string) error
	Begin(ctx context.Context, level sqltypes.IsolationLevel) (Tx, error)
	Prepare(ctx context.Context, tx Tx, stmt Statement) error
	ExecuteReader(ctx context.Context, tx Tx, stmt Statement) (Cursor, error)
	ExecuteScalar(ctx context.Context, tx Tx, stmt Statement) (interface{}, error)
	ExecuteNonQuery(ctx context.Context, tx Tx, stmt Statement) (int64, error)
	Close() error
}

type Tx interface {
	Commit() error
	Rollback() error
}

// Cursor is a forward-only result. Values holds sqltypes.Null for nulls.
type Cursor interface {
	dataset.Source
	Depth() int
	IsClosed() bool
	Close() error
}

var _ Cursor = (*dataset.Reader)(nil)

// Statement is a command at the moment of execution. Parameters are snapshots
// of the bound parameters in collection order.
type Statement struct {
	Text       string
	Kind       sqltypes.CommandKind
	Timeout    time.Duration
	Parameters []fingerprint.Parameter
}
