package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"tldr-buffer/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyRecent = "list:recent"
	keyQueue  = "queue:summarize"
)

// HybridStore combines Redis (index + queue) and Badger (document records).
type HybridStore struct {
	mu     sync.Mutex
	rdb    *redis.Client
	db     *badger.DB
	opts   options
	logger *zap.Logger
	stopGC func()
}

// NewHybridStore connects to Redis and opens Badger at badgerPath.
// Pass badgerPath="" to keep records in memory.
func NewHybridStore(redisAddr, badgerPath string, logger *zap.Logger, opts ...Option) (*HybridStore, error) {
	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Initialize Badger
	db, err := openBadger(badgerPath)
	if err != nil {
		rdb.Close()
		return nil, err
	}
	return newHybrid(rdb, db, logger, opts...), nil
}

func newHybrid(rdb *redis.Client, db *badger.DB, logger *zap.Logger, opts ...Option) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := buildOptions(append(opts, WithLogger(logger)))
	s := &HybridStore{rdb: rdb, db: db, opts: o, logger: logger, stopGC: func() {}}
	if db != nil {
		s.stopGC = startGC(db, o.gcInterval, logger)
	}
	return s
}

// Close cleans up connections
func (s *HybridStore) Close() error {
	s.stopGC()
	var errs []error
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// Save writes the record and evictions to Badger, then updates the Redis
// index in one MULTI. If Redis fails the Badger write is rolled back, so
// the index and the record set never disagree.
func (s *HybridStore) Save(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		return model.StorageError("save", "", ErrEmptyID)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return model.StorageError("save", doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.rdb.LRange(ctx, keyRecent, 0, -1).Result()
	if err != nil {
		return model.StorageError("save", doc.ID, err)
	}
	_, evicted := touch(ids, doc.ID, s.opts.cap)

	// Keep what we overwrite so a failed index update can be undone.
	backup := map[string][]byte{}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, id := range append([]string{doc.ID}, evicted...) {
			raw, err := readRaw(txn, id)
			if err != nil {
				return err
			}
			backup[id] = raw
		}
		if err := txn.Set(docKey(doc.ID), data); err != nil {
			return err
		}
		for _, id := range evicted {
			if err := txn.Delete(docKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.StorageError("save", doc.ID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, keyRecent, 0, doc.ID)
		pipe.LPush(ctx, keyRecent, doc.ID)
		pipe.LTrim(ctx, keyRecent, 0, int64(s.opts.cap-1))
		return nil
	})
	if err != nil {
		if rerr := s.restore(backup); rerr != nil {
			s.logger.Error("rollback failed", zap.String("id", doc.ID), zap.Error(rerr))
		}
		return model.StorageError("save", doc.ID, err)
	}

	if len(evicted) > 0 {
		s.logger.Debug("evicted documents", zap.Strings("ids", evicted))
	}
	return nil
}

func (s *HybridStore) restore(backup map[string][]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for id, raw := range backup {
			var err error
			if raw == nil {
				err = txn.Delete(docKey(id))
			} else {
				err = txn.Set(docKey(id), raw)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Update rewrites the Badger record only; the Redis index already holds the id.
func (s *HybridStore) Update(ctx context.Context, doc *model.Document) (bool, error) {
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

func (s *HybridStore) Get(ctx context.Context, id string) (*model.Document, bool, error) {
	doc, ok, err := getDoc(s.db, id)
	if err != nil {
		return nil, false, model.StorageError("get", id, err)
	}
	return doc, ok, nil
}

// List fetches the most recent documents in index order.
func (s *HybridStore) List(ctx context.Context, limit int) ([]model.Document, error) {
	limit = listLimit(limit)
	ids, err := s.rdb.LRange(ctx, keyRecent, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, model.StorageError("list", "", err)
	}
	docs, err := loadDocs(s.db, ids)
	if err != nil {
		return nil, model.StorageError("list", "", err)
	}
	return docs, nil
}

// Delete drops the index entry first so a reader never sees an id without a record.
func (s *HybridStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rdb.LRem(ctx, keyRecent, 0, id).Err(); err != nil {
		return model.StorageError("delete", id, err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(id))
	})
	if err != nil {
		return model.StorageError("delete", id, err)
	}
	return nil
}

// Clear drops the Redis keys, then the Badger records. If Badger fails the
// index and queue are pushed back, so the store still looks untouched.
func (s *HybridStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recent, err := s.rdb.LRange(ctx, keyRecent, 0, -1).Result()
	if err != nil {
		return model.StorageError("clear", "", err)
	}
	queued, err := s.rdb.LRange(ctx, keyQueue, 0, -1).Result()
	if err != nil {
		return model.StorageError("clear", "", err)
	}
	if err := s.rdb.Del(ctx, keyRecent, keyQueue).Err(); err != nil {
		return model.StorageError("clear", "", err)
	}
	if err := s.db.Update(deleteDocs); err != nil {
		if rerr := s.restoreLists(ctx, recent, queued); rerr != nil {
			s.logger.Error("clear rollback failed", zap.Error(rerr))
		}
		return model.StorageError("clear", "", err)
	}
	return nil
}

func (s *HybridStore) restoreLists(ctx context.Context, recent, queued []string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(recent) > 0 {
			pipe.RPush(ctx, keyRecent, toArgs(recent)...)
		}
		if len(queued) > 0 {
			pipe.RPush(ctx, keyQueue, toArgs(queued)...)
		}
		return nil
	})
	return err
}

func toArgs(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Enqueue schedules id for background summarization.
func (s *HybridStore) Enqueue(ctx context.Context, id string) error {
	if err := s.rdb.LPush(ctx, keyQueue, id).Err(); err != nil {
		return model.StorageError("enqueue", id, err)
	}
	return nil
}

// PopQueue waits for a job in the Redis queue (Blocking)
func (s *HybridStore) PopQueue(ctx context.Context) (string, error) {
	// 0 means wait forever until an item arrives
	result, err := s.rdb.BRPop(ctx, 0, keyQueue).Result()
	if err != nil {
		return "", err
	}
	return result[1], nil
}
