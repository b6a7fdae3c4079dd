package sqlreplay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/anacrolix/sqlreplay/dataset"
	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

// Retriever looks up recorded results by exact fingerprint.
type Retriever interface {
	RetrieveDataSet(ctx context.Context, fp fingerprint.Fingerprint) ([]byte, bool, error)
	RetrieveScalar(ctx context.Context, fp fingerprint.Fingerprint) (interface{}, bool, error)
	RetrieveRowCount(ctx context.Context, fp fingerprint.Fingerprint) (int64, bool, error)
}

// Replaying serves every execution from r and never opens a database. A miss
// fails with ErrReplayDataUnavailable.
func Replaying(r Retriever) Driver {
	return replayDriver{r}
}

type replayDriver struct {
	r Retriever
}

func (me replayDriver) Open(_ context.Context, cs string) (Conn, error) {
	return &replayConn{cs: cs, r: me.r, database: databaseName(cs)}, nil
}

// databaseName finds the Database or Initial Catalog key of a
// semicolon-separated connection string.
func databaseName(cs string) string {
	for _, part := range strings.Split(cs, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "database", "initial catalog":
			return strings.TrimSpace(v)
		}
	}
	return ""
}

type replayConn struct {
	cs string
	r  Retriever

	mu       sync.Mutex
	database string
}

func (me *replayConn) Database() string {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.database
}

func (me *replayConn) ChangeDatabase(_ context.Context, name string) error {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.database = name
	return nil
}

func (me *replayConn) Begin(context.Context, sqltypes.IsolationLevel) (Tx, error) {
	return &replayTx{}, nil
}

func (me *replayConn) Prepare(context.Context, Tx, Statement) error {
	return nil
}

func (me *replayConn) fingerprint(stmt Statement) (fingerprint.Fingerprint, error) {
	return fingerprint.Build(me.cs, stmt.Text, stmt.Kind, stmt.Parameters)
}

func unavailable(fp fingerprint.Fingerprint) error {
	return fmt.Errorf("%w: %v", ErrReplayDataUnavailable, fp)
}

func (me *replayConn) ExecuteReader(ctx context.Context, _ Tx, stmt Statement) (Cursor, error) {
	fp, err := me.fingerprint(stmt)
	if err != nil {
		return nil, err
	}
	log.Infof("REPLAY[ExecuteReader]: %s", stmt.Text)
	b, ok, err := me.r.RetrieveDataSet(ctx, fp)
	if err != nil {
		return nil, errors.Wrap(err, "retrieving data set")
	}
	if !ok {
		return nil, unavailable(fp)
	}
	ds, err := dataset.Decode(b)
	if err != nil {
		return nil, err
	}
	return dataset.NewReader(ds), nil
}

func (me *replayConn) ExecuteScalar(ctx context.Context, _ Tx, stmt Statement) (interface{}, error) {
	fp, err := me.fingerprint(stmt)
	if err != nil {
		return nil, err
	}
	log.Infof("REPLAY[ExecuteScalar]: %s", stmt.Text)
	v, ok, err := me.r.RetrieveScalar(ctx, fp)
	if err != nil {
		return nil, errors.Wrap(err, "retrieving scalar")
	}
	if !ok {
		return nil, unavailable(fp)
	}
	return v, nil
}

func (me *replayConn) ExecuteNonQuery(ctx context.Context, _ Tx, stmt Statement) (int64, error) {
	fp, err := me.fingerprint(stmt)
	if err != nil {
		return 0, err
	}
	log.Infof("REPLAY[ExecuteNonQuery]: %s", stmt.Text)
	n, ok, err := me.r.RetrieveRowCount(ctx, fp)
	if err != nil {
		return 0, errors.Wrap(err, "retrieving row count")
	}
	if !ok {
		return 0, unavailable(fp)
	}
	return n, nil
}

func (me *replayConn) Close() error {
	return nil
}

type replayTx struct {
	mu   sync.Mutex
	done bool
}

func (me *replayTx) finish() error {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.done {
		return ErrTransactionDone
	}
	me.done = true
	return nil
}

func (me *replayTx) Commit() error   { return me.finish() }
func (me *replayTx) Rollback() error { return me.finish() }
