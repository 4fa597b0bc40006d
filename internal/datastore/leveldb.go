package datastore

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is a pure-Go backend, useful where cgo is unavailable. Batches
// go through leveldb.Batch and are atomic; iterators read from a
// consistent snapshot taken when the scan starts. Range deletion has no
// native engine support and is emulated with a scan plus one delete batch.
type LevelDB struct {
	db *leveldb.DB
}

var _ Datastore = (*LevelDB)(nil)

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewLevelDBMem opens a LevelDB instance over in-memory storage. Nothing
// touches disk; intended for tests and throwaway instances.
func NewLevelDBMem() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, bool, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (l *LevelDB) Scan(start, end []byte) Iterator {
	return &levelIterator{it: l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)}
}

func (l *LevelDB) Write(b *Batch) error {
	wb := new(leveldb.Batch)
	for _, op := range b.Ops() {
		if op.Delete {
			wb.Delete(op.Key)
		} else {
			wb.Put(op.Key, op.Value)
		}
	}
	return l.db.Write(wb, nil)
}

func (l *LevelDB) DeleteRange(start, end []byte) error {
	it := l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	wb := new(leveldb.Batch)
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		wb.Delete(key)
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return err
	}
	if wb.Len() == 0 {
		return nil
	}
	return l.db.Write(wb, nil)
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelIterator struct {
	it iterator.Iterator
}

func (i *levelIterator) Next() bool    { return i.it.Next() }
func (i *levelIterator) Key() []byte   { return i.it.Key() }
func (i *levelIterator) Value() []byte { return i.it.Value() }
func (i *levelIterator) Err() error    { return i.it.Error() }
func (i *levelIterator) Release()      { i.it.Release() }
