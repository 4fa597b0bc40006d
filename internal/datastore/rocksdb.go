package datastore

import (
	"github.com/linxGnu/grocksdb"
)

// RocksDB is the production backend. Batches map to RocksDB write batches,
// which are atomic with respect to crash and to concurrent readers;
// iterators pin a consistent view of the database at creation time, so a
// scan never observes writes issued after it starts.
type RocksDB struct {
	db        *grocksdb.DB
	readOpts  *grocksdb.ReadOptions
	writeOpts *grocksdb.WriteOptions
}

var _ Datastore = (*RocksDB)(nil)

// NewRocksDB opens (or creates) a RocksDB database at path.
func NewRocksDB(path string) (*RocksDB, error) {
	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	db, err := grocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, err
	}
	return &RocksDB{
		db:        db,
		readOpts:  grocksdb.NewDefaultReadOptions(),
		writeOpts: grocksdb.NewDefaultWriteOptions(),
	}, nil
}

func (r *RocksDB) Get(key []byte) ([]byte, bool, error) {
	v, err := r.db.Get(r.readOpts, key)
	if err != nil {
		return nil, false, err
	}
	defer v.Free()
	if !v.Exists() {
		return nil, false, nil
	}
	out := make([]byte, len(v.Data()))
	copy(out, v.Data())
	return out, true, nil
}

func (r *RocksDB) Scan(start, end []byte) Iterator {
	// The upper bound must stay alive for the iterator's lifetime, so
	// each scan carries its own ReadOptions.
	ro := grocksdb.NewDefaultReadOptions()
	if end != nil {
		ro.SetIterateUpperBound(end)
	}
	it := r.db.NewIterator(ro)
	it.Seek(start)
	return &rocksIterator{it: it, ro: ro}
}

func (r *RocksDB) Write(b *Batch) error {
	wb := grocksdb.NewWriteBatch()
	defer wb.Destroy()
	for _, op := range b.Ops() {
		if op.Delete {
			wb.Delete(op.Key)
		} else {
			wb.Put(op.Key, op.Value)
		}
	}
	return r.db.Write(r.writeOpts, wb)
}

func (r *RocksDB) DeleteRange(start, end []byte) error {
	wb := grocksdb.NewWriteBatch()
	defer wb.Destroy()
	wb.DeleteRange(start, end)
	return r.db.Write(r.writeOpts, wb)
}

func (r *RocksDB) Close() error {
	r.readOpts.Destroy()
	r.writeOpts.Destroy()
	r.db.Close()
	return nil
}

type rocksIterator struct {
	it       *grocksdb.Iterator
	ro       *grocksdb.ReadOptions
	started  bool
	released bool
	key, val []byte
}

func (i *rocksIterator) Next() bool {
	if i.released {
		return false
	}
	if i.started {
		i.it.Next()
	}
	i.started = true
	if !i.it.Valid() {
		return false
	}
	k, v := i.it.Key(), i.it.Value()
	i.key = append(i.key[:0], k.Data()...)
	i.val = append(i.val[:0], v.Data()...)
	k.Free()
	v.Free()
	return true
}

func (i *rocksIterator) Key() []byte   { return i.key }
func (i *rocksIterator) Value() []byte { return i.val }

func (i *rocksIterator) Err() error {
	if i.released {
		return nil
	}
	return i.it.Err()
}

func (i *rocksIterator) Release() {
	if i.released {
		return
	}
	i.released = true
	i.it.Close()
	i.ro.Destroy()
}
