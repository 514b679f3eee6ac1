package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"tldr-buffer/internal/model"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const docPrefix = "doc:"

func docKey(id string) []byte { return []byte(docPrefix + id) }

// openBadger opens a Badger database; an empty path keeps it in memory.
func openBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Silence default logger
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return db, nil
}

// gcDiscardRatio is the share of stale data a value log file needs before
// it is rewritten.
const gcDiscardRatio = 0.7

// startGC periodically compacts the value log until the returned stop func
// is called. In-memory databases have no value log and get a no-op.
func startGC(db *badger.DB, interval time.Duration, logger *zap.Logger) func() {
	if interval <= 0 || db.Opts().InMemory {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				runGC(db, logger)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}

func runGC(db *badger.DB, logger *zap.Logger) {
	for {
		// Each successful pass rewrites one file; repeat until nothing is left.
		err := db.RunValueLogGC(gcDiscardRatio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
			logger.Warn("Value log GC failed", zap.Error(err))
		}
		return
	}
}

// setIfPresent rewrites the record for doc only when one exists.
func setIfPresent(db *badger.DB, doc *model.Document) (bool, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return false, err
	}
	var found bool
	err = db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(docKey(doc.ID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return txn.Set(docKey(doc.ID), data)
	})
	return found, err
}

func readDoc(txn *badger.Txn, id string) (*model.Document, error) {
	item, err := txn.Get(docKey(id))
	if err != nil {
		return nil, err
	}
	var doc model.Document
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// readRaw returns the stored bytes for id, or nil when absent.
func readRaw(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(docKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func getDoc(db *badger.DB, id string) (*model.Document, bool, error) {
	var doc *model.Document
	err := db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = readDoc(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// loadDocs reads ids in order, skipping any without a record.
func loadDocs(db *badger.DB, ids []string) ([]model.Document, error) {
	docs := make([]model.Document, 0, len(ids))
	err := db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDoc(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			docs = append(docs, *doc)
		}
		return nil
	})
	return docs, err
}

// deleteDocs removes every record under docPrefix inside txn.
func deleteDocs(txn *badger.Txn) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(docPrefix)})
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
