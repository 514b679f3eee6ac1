package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"tldr-buffer/internal/model"

	"github.com/dgraph-io/badger/v4"
)

const indexKey = "index"

// LocalStore keeps both the index and the records in one Badger database,
// so every write is a single transaction.
type LocalStore struct {
	mu     sync.Mutex
	db     *badger.DB
	opts   options
	queue  chan string
	stopGC func()
}

// OpenLocal opens a Badger-backed store at path ("" for in-memory).
func OpenLocal(path string, opts ...Option) (*LocalStore, error) {
	db, err := openBadger(path)
	if err != nil {
		return nil, err
	}
	return NewLocalStore(db, opts...), nil
}

// NewLocalStore wraps an already open database.
func NewLocalStore(db *badger.DB, opts ...Option) *LocalStore {
	o := buildOptions(opts)
	return &LocalStore{
		db:     db,
		opts:   o,
		queue:  make(chan string, queueSize),
		stopGC: startGC(db, o.gcInterval, o.logger),
	}
}

// queueSize bounds the in-process summarization queue.
const queueSize = 256

var ErrQueueFull = errors.New("summarization queue is full")

// Enqueue schedules id for background summarization in this process.
func (s *LocalStore) Enqueue(ctx context.Context, id string) error {
	select {
	case s.queue <- id:
		return nil
	default:
		return model.StorageError("enqueue", id, ErrQueueFull)
	}
}

// PopQueue blocks until an id is queued or ctx is done.
func (s *LocalStore) PopQueue(ctx context.Context) (string, error) {
	select {
	case id := <-s.queue:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *LocalStore) Close() error {
	s.stopGC()
	return s.db.Close()
}

func readIndex(txn *badger.Txn) ([]string, error) {
	item, err := txn.Get([]byte(indexKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ids)
	})
	return ids, err
}

func writeIndex(txn *badger.Txn, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return txn.Set([]byte(indexKey), data)
}

// Save writes the record, moves it to the front of the index and evicts
// past the cap, all in one transaction.
func (s *LocalStore) Save(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		return model.StorageError("save", "", ErrEmptyID)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return model.StorageError("save", doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.db.Update(func(txn *badger.Txn) error {
		ids, err := readIndex(txn)
		if err != nil {
			return err
		}
		next, evicted := touch(ids, doc.ID, s.opts.cap)
		if err := txn.Set(docKey(doc.ID), data); err != nil {
			return err
		}
		for _, id := range evicted {
			if err := txn.Delete(docKey(id)); err != nil {
				return err
			}
		}
		return writeIndex(txn, next)
	})
	if err != nil {
		return model.StorageError("save", doc.ID, err)
	}
	return nil
}

func (s *LocalStore) Update(ctx context.Context, doc *model.Document) (bool, error) {
	if doc.ID == "" {
		return false, model.StorageError("update", "", ErrEmptyID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found, err := setIfPresent(s.db, doc)
	if err != nil {
		return false, model.StorageError("update", doc.ID, err)
	}
	return found, nil
}

func (s *LocalStore) Get(ctx context.Context, id string) (*model.Document, bool, error) {
	doc, ok, err := getDoc(s.db, id)
	if err != nil {
		return nil, false, model.StorageError("get", id, err)
	}
	return doc, ok, nil
}

func (s *LocalStore) List(ctx context.Context, limit int) ([]model.Document, error) {
	limit = listLimit(limit)
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ids, err = readIndex(txn)
		return err
	})
	if err != nil {
		return nil, model.StorageError("list", "", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	docs, err := loadDocs(s.db, ids)
	if err != nil {
		return nil, model.StorageError("list", "", err)
	}
	return docs, nil
}

// Delete removes the record and its index entry. Deleting a missing id is a no-op.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		ids, err := readIndex(txn)
		if err != nil {
			return err
		}
		if err := txn.Delete(docKey(id)); err != nil {
			return err
		}
		next, found := remove(ids, id)
		if !found {
			return nil
		}
		return writeIndex(txn, next)
	})
	if err != nil {
		return model.StorageError("delete", id, err)
	}
	return nil
}

func (s *LocalStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := deleteDocs(txn); err != nil {
			return err
		}
		return txn.Delete([]byte(indexKey))
	})
	if err != nil {
		return model.StorageError("clear", "", err)
	}
	return nil
}
