package sqlreplay

import (
	"context"

	"github.com/anacrolix/sqlreplay/dataset"
	"github.com/anacrolix/sqlreplay/fingerprint"
)

// Recorder receives the result of every live execution. Recording an equal
// fingerprint again must not replace the first entry.
type Recorder interface {
	RecordDataSet(ctx context.Context, fp fingerprint.Fingerprint, data []byte) error
	RecordScalar(ctx context.Context, fp fingerprint.Fingerprint, value interface{}) error
	RecordRowCount(ctx context.Context, fp fingerprint.Fingerprint, n int64) error
}

// Recording executes against d and hands every result to r. Readers are
// drained into a snapshot before the caller sees them, and the caller gets a
// disconnected cursor over that snapshot. A failed recording is logged and
// does not fail the execution.
func Recording(d Driver, r Recorder) Driver {
	return &liveDriver{d, r}
}

type liveDriver struct {
	inner Driver
	rec   Recorder
}

func (me *liveDriver) Open(ctx context.Context, cs string) (Conn, error) {
	c, err := me.inner.Open(ctx, cs)
	if err != nil {
		return nil, err
	}
	return &liveConn{Conn: c, cs: cs, rec: me.rec}, nil
}

type liveConn struct {
	Conn
	cs  string
	rec Recorder
}

func (me *liveConn) fingerprint(stmt Statement) (fingerprint.Fingerprint, error) {
	return fingerprint.Build(me.cs, stmt.Text, stmt.Kind, stmt.Parameters)
}

func (me *liveConn) ExecuteReader(ctx context.Context, tx Tx, stmt Statement) (Cursor, error) {
	fp, err := me.fingerprint(stmt)
	if err != nil {
		return nil, err
	}
	log.Infof("LIVE[ExecuteReader]: %s", stmt.Text)
	cur, err := me.Conn.ExecuteReader(ctx, tx, stmt)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Fill(cur)
	cur.Close()
	if err != nil {
		return nil, err
	}
	if b, err := ds.Encode(); err != nil {
		log.Warningf("not recording data set for %v: %v", fp, err)
	} else if err := me.rec.RecordDataSet(ctx, fp, b); err != nil {
		log.Warningf("recording data set for %v: %v", fp, err)
	}
	return dataset.NewReader(ds), nil
}

func (me *liveConn) ExecuteScalar(ctx context.Context, tx Tx, stmt Statement) (interface{}, error) {
	fp, err := me.fingerprint(stmt)
	if err != nil {
		return nil, err
	}
	log.Infof("LIVE[ExecuteScalar]: %s", stmt.Text)
	v, err := me.Conn.ExecuteScalar(ctx, tx, stmt)
	if err != nil {
		return nil, err
	}
	if err := me.rec.RecordScalar(ctx, fp, v); err != nil {
		log.Warningf("recording scalar for %v: %v", fp, err)
	}
	return v, nil
}

func (me *liveConn) ExecuteNonQuery(ctx context.Context, tx Tx, stmt Statement) (int64, error) {
	fp, err := me.fingerprint(stmt)
	if err != nil {
		return 0, err
	}
	log.Infof("LIVE[ExecuteNonQuery]: %s", stmt.Text)
	n, err := me.Conn.ExecuteNonQuery(ctx, tx, stmt)
	if err != nil {
		return 0, err
	}
	if err := me.rec.RecordRowCount(ctx, fp, n); err != nil {
		log.Warningf("recording row count for %v: %v", fp, err)
	}
	return n, nil
}
