package cache

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/anacrolix/sqlreplay/fingerprint"
)

type memoryKey struct {
	kind Kind
	key  string
}

// Memory keeps entries in process. It is the dictionary cache: fast, and gone
// with the process.
type Memory struct {
	entries *xsync.Map[memoryKey, []byte]
}

var _ Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: xsync.NewMap[memoryKey, []byte]()}
}

func (me *Memory) Put(_ context.Context, kind Kind, fp fingerprint.Fingerprint, value []byte) (stored bool, err error) {
	_, loaded := me.entries.LoadOrStore(memoryKey{kind, fp.Key()}, append([]byte(nil), value...))
	stored = !loaded
	return
}

func (me *Memory) Get(_ context.Context, kind Kind, fp fingerprint.Fingerprint) (value []byte, ok bool, err error) {
	value, ok = me.entries.Load(memoryKey{kind, fp.Key()})
	return
}

func (me *Memory) Len() int {
	return me.entries.Size()
}
