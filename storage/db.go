package storage

import (
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Database is the key/value store backing the ledger. Besides raw access it
// exposes the trie node database used by the state trie so both share the
// same underlying storage.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	TrieDB() *triedb.Database
	Close()
}

type backed struct {
	disk   ethdb.Database
	trieDB *triedb.Database
}

func newBacked(disk ethdb.Database) backed {
	return backed{disk: disk, trieDB: triedb.NewDatabase(disk, nil)}
}

func (b backed) Put(key []byte, value []byte) error { return b.disk.Put(key, value) }

func (b backed) Get(key []byte) ([]byte, error) { return b.disk.Get(key) }

func (b backed) Has(key []byte) (bool, error) { return b.disk.Has(key) }

func (b backed) TrieDB() *triedb.Database { return b.trieDB }

// --- In-Memory DB (for testing) ---

type MemDB struct {
	backed
}

func NewMemDB() *MemDB {
	return &MemDB{backed: newBacked(rawdb.NewMemoryDatabase())}
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	_ = db.trieDB.Close()
	_ = db.disk.Close()
}

// --- Persistent DB ---

// LevelDB is a persistent store on top of goleveldb.
type LevelDB struct {
	backed
}

// LevelDBOptions tunes the goleveldb instance.
type LevelDBOptions struct {
	CacheMB int
	Handles int
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	return NewLevelDBWithOptions(path, LevelDBOptions{})
}

// NewLevelDBWithOptions opens the database applying the supplied tuning.
func NewLevelDBWithOptions(path string, opts LevelDBOptions) (*LevelDB, error) {
	cache := opts.CacheMB
	if cache <= 0 {
		cache = 16
	}
	handles := opts.Handles
	if handles <= 0 {
		handles = 64
	}
	kv, err := leveldb.NewCustom(path, "rewardcenter/db/", func(o *opt.Options) {
		o.BlockCacheCapacity = cache / 2 * opt.MiB
		o.WriteBuffer = cache / 4 * opt.MiB
		o.OpenFilesCacheCapacity = handles
	})
	if err != nil {
		return nil, err
	}
	return &LevelDB{backed: newBacked(rawdb.NewDatabase(kv))}, nil
}

// Close flushes the trie cache and closes the database connection.
func (ldb *LevelDB) Close() {
	_ = ldb.trieDB.Close()
	_ = ldb.disk.Close()
}
