// Package cache persists recorded query results keyed by fingerprint. Entries
// are write-once: the first recording for a fingerprint wins and later ones
// are accepted and dropped.
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"github.com/anacrolix/sqlreplay/fingerprint"
	"github.com/anacrolix/sqlreplay/sqltypes"
)

var log = logging.MustGetLogger("sqlreplay/cache")

type Kind string

const (
	KindDataSet  Kind = "DataSet"
	KindScalar   Kind = "Scalar"
	KindRowCount Kind = "RowCount"
)

// Backend stores opaque values. Put must not overwrite an existing entry for an
// equal fingerprint. Equality is exact: fingerprint.Fingerprint.Key, never a
// partial match.
type Backend interface {
	Put(ctx context.Context, kind Kind, fp fingerprint.Fingerprint, value []byte) (stored bool, err error)
	Get(ctx context.Context, kind Kind, fp fingerprint.Fingerprint) (value []byte, ok bool, err error)
}

// Cache records and retrieves data sets, scalars and row counts.
type Cache struct {
	backend Backend
}

func New(b Backend) *Cache {
	return &Cache{backend: b}
}

func (me *Cache) put(ctx context.Context, kind Kind, fp fingerprint.Fingerprint, value []byte) error {
	stored, err := me.backend.Put(ctx, kind, fp, value)
	if err != nil {
		return errors.Wrapf(err, "recording %s", kind)
	}
	if !stored {
		log.Debugf("%s already recorded for %v", kind, fp)
	}
	return nil
}

func (me *Cache) RecordDataSet(ctx context.Context, fp fingerprint.Fingerprint, data []byte) error {
	return me.put(ctx, KindDataSet, fp, data)
}

func (me *Cache) RecordScalar(ctx context.Context, fp fingerprint.Fingerprint, value interface{}) error {
	b, err := encode(scalar{sqltypes.ToWire(value)})
	if err != nil {
		return err
	}
	return me.put(ctx, KindScalar, fp, b)
}

func (me *Cache) RecordRowCount(ctx context.Context, fp fingerprint.Fingerprint, n int64) error {
	b, err := encode(n)
	if err != nil {
		return err
	}
	return me.put(ctx, KindRowCount, fp, b)
}

func (me *Cache) RetrieveDataSet(ctx context.Context, fp fingerprint.Fingerprint) (data []byte, ok bool, err error) {
	data, ok, err = me.backend.Get(ctx, KindDataSet, fp)
	err = errors.Wrap(err, "retrieving data set")
	return
}

func (me *Cache) RetrieveScalar(ctx context.Context, fp fingerprint.Fingerprint) (value interface{}, ok bool, err error) {
	b, ok, err := me.backend.Get(ctx, KindScalar, fp)
	if err != nil || !ok {
		err = errors.Wrap(err, "retrieving scalar")
		return
	}
	var s scalar
	if err = decode(b, &s); err != nil {
		ok = false
		return
	}
	value = sqltypes.FromWire(s.Value)
	return
}

func (me *Cache) RetrieveRowCount(ctx context.Context, fp fingerprint.Fingerprint) (n int64, ok bool, err error) {
	b, ok, err := me.backend.Get(ctx, KindRowCount, fp)
	if err != nil || !ok {
		err = errors.Wrap(err, "retrieving row count")
		return
	}
	if err = decode(b, &n); err != nil {
		ok = false
	}
	return
}

// scalar lets a null scalar be distinguished from a missing entry.
type scalar struct {
	Value interface{}
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Wrapf(err, "encoding %T", v)
	}
	return buf.Bytes(), nil
}

func decode(b []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return errors.Wrapf(err, "decoding %T", v)
	}
	return nil
}

func bucketName(kind Kind, fp fingerprint.Fingerprint) string {
	return fmt.Sprintf("%s%016x", kind, fp.Hash())
}
