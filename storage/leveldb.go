package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

type LevelDBHelper struct {
	db *leveldb.DB
}

// NewLevelDB opens or creates a LevelDB database in the directory name
func NewLevelDB(name string) (KvStore, error) {
	db, err := leveldb.OpenFile(name, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDBHelper{db: db}, nil
}

// NewMemLevelDB returns a LevelDB database kept in memory only
func NewMemLevelDB() (KvStore, error) {
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}

	return &LevelDBHelper{db: db}, nil
}

func (h *LevelDBHelper) Close() error {
	return h.db.Close()
}

func (h *LevelDBHelper) Get(key []byte) ([]byte, error) {
	value, err := h.db.Get(key, nil)
	if errors.Is(err, lerrors.ErrNotFound) {
		return nil, ErrNotFound
	}

	return value, err
}

func (h *LevelDBHelper) Has(key []byte) (bool, error) {
	return h.db.Has(key, nil)
}

func (h *LevelDBHelper) Put(key, value []byte) error {
	if err := h.db.Put(key, value, nil); err != nil {
		return err
	}

	return nil
}

func (h *LevelDBHelper) Delete(key []byte) error {
	if err := h.db.Delete(key, nil); err != nil {
		return err
	}

	return nil
}

func (h *LevelDBHelper) Write(puts map[string][]byte) error {
	batch := new(leveldb.Batch)
	for key, value := range puts {
		batch.Put([]byte(key), value)
	}

	return h.db.Write(batch, &opt.WriteOptions{Sync: true})
}
