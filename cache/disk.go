package cache

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/anacrolix/sqlreplay/fingerprint"
)

// Disk stores one gob file per fingerprint hash bucket. Files are spread over
// FolderDepth-1 levels of single-digit subdirectories taken from the hash.
// Unreadable files are logged and treated as empty, and failed writes are
// logged and dropped: a broken cache degrades to misses rather than failing
// recording.
type Disk struct {
	Dir         string
	FolderDepth int

	mu sync.Mutex
}

var _ Backend = (*Disk)(nil)

func NewDisk(dir string, folderDepth int) (*Disk, error) {
	if folderDepth < 1 {
		return nil, fmt.Errorf("folder depth must be at least 1, got %d", folderDepth)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating cache dir")
	}
	return &Disk{Dir: dir, FolderDepth: folderDepth}, nil
}

type diskEntry struct {
	Key   string
	Value []byte
}

func (me *Disk) path(kind Kind, fp fingerprint.Fingerprint) string {
	name := bucketName(kind, fp)
	hash := fmt.Sprintf("%016x", fp.Hash())
	parts := []string{me.Dir}
	for i := 0; i < me.FolderDepth-1; i++ {
		parts = append(parts, hash[i:i+1])
	}
	return filepath.Join(append(parts, name+".dat")...)
}

func (me *Disk) read(path string) (ret []diskEntry) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		log.Errorf("opening cache file: %v", err)
		return nil
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&ret); err != nil {
		log.Errorf("reading cache file %q: %v", path, err)
		return nil
	}
	return
}

func (me *Disk) write(path string, entries []diskEntry) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Errorf("creating cache dir: %v", err)
		return
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		log.Errorf("creating cache file: %v", err)
		return
	}
	err = gob.NewEncoder(f).Encode(entries)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		log.Errorf("writing cache file %q: %v", path, err)
		os.Remove(tmp)
	}
}

func (me *Disk) Put(_ context.Context, kind Kind, fp fingerprint.Fingerprint, value []byte) (stored bool, err error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	path := me.path(kind, fp)
	entries := me.read(path)
	key := fp.Key()
	for _, e := range entries {
		if e.Key == key {
			return
		}
	}
	me.write(path, append(entries, diskEntry{key, value}))
	stored = true
	return
}

func (me *Disk) Get(_ context.Context, kind Kind, fp fingerprint.Fingerprint) (value []byte, ok bool, err error) {
	me.mu.Lock()
	defer me.mu.Unlock()
	key := fp.Key()
	for _, e := range me.read(me.path(kind, fp)) {
		if e.Key == key {
			return e.Value, true, nil
		}
	}
	return
}
