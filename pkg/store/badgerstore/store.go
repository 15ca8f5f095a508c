// Package badgerstore is the Badger-backed external result: spilled rows
// live in a per-result Badger instance whose key order is the requested
// sort order, so forward iteration returns rows already sorted and, for a
// distinct store, already deduplicated.
package badgerstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/kasuganosora/resultset/pkg/logger"
	"github.com/kasuganosora/resultset/pkg/result/domain"
	"github.com/kasuganosora/resultset/pkg/store"
)

// Key prefixes. Sorted entries carry the physical iteration order;
// distinct entries map the visible-prefix dedup key to its sorted key.
var (
	prefixSorted   = []byte("s:")
	prefixDistinct = []byte("d:")
)

// Config configuration for the badger backend
type Config struct {
	// Dir spill directory; a per-result subdirectory is created in it.
	// Empty means in-memory mode.
	Dir string `json:"dir"`

	// InMemory forces pure in-memory mode regardless of Dir
	InMemory bool `json:"in_memory"`

	// SyncWrites if true, syncs writes to disk immediately
	SyncWrites bool `json:"sync_writes"`
}

// DefaultConfig returns default configuration
func DefaultConfig(dir string) *Config {
	return &Config{Dir: dir}
}

// Factory builds badger-backed external results.
type Factory struct {
	cfg *Config
	log *logger.Logger
}

// NewFactory creates a factory. A nil config means in-memory stores.
func NewFactory(cfg *Config, log *logger.Logger) *Factory {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Factory{cfg: cfg, log: log}
}

// Name implements store.Factory.
func (f *Factory) Name() string { return "badger" }

// Create implements store.Factory.
func (f *Factory) Create(spec *store.CreateSpec) (store.ExternalResult, error) {
	dir := spec.Dir
	if dir == "" {
		dir = f.cfg.Dir
	}

	var opts badger.Options
	var resultDir string
	if f.cfg.InMemory || dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		resultDir = filepath.Join(dir, "result-"+uuid.NewString())
		if err := os.MkdirAll(resultDir, 0o755); err != nil {
			return nil, fmt.Errorf("create spill directory: %w", err)
		}
		opts = badger.DefaultOptions(resultDir)
	}
	opts = opts.WithSyncWrites(f.cfg.SyncWrites)
	opts = opts.WithLogger(f.log.Badger())

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger spill store: %w", err)
	}

	f.log.Debugw("external result created", "backend", "badger",
		"dir", resultDir, "distinct", spec.Distinct, "sorted", spec.Sort != nil)

	inner := &shared{
		db:    db,
		spec:  spec,
		codec: store.NewRowCodec(),
		keys:  store.NewKeyEncoder(spec.Sort),
		log:   f.log,
		dir:   resultDir,
	}
	inner.refs.Store(1)
	return &Result{inner: inner}, nil
}

// shared is the storage state common to a result and its shallow copies.
// The backing DB is released once, when the last handle closes.
type shared struct {
	db    *badger.DB
	spec  *store.CreateSpec
	codec *store.RowCodec
	keys  *store.KeyEncoder
	log   *logger.Logger
	dir   string
	refs  atomic.Int32
	seq   uint64
	count int
}

func (s *shared) sortedKey(row domain.Row) ([]byte, error) {
	key := make([]byte, 0, 32)
	key = append(key, prefixSorted...)
	key, err := s.keys.EncodeSortKey(key, row)
	if err != nil {
		return nil, err
	}
	s.seq++
	return binary.BigEndian.AppendUint64(key, s.seq), nil
}

func (s *shared) distinctKey(row domain.Row) ([]byte, error) {
	dk, err := s.codec.DistinctKey(row, s.spec.VisibleColumnCount)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, prefixDistinct...), dk...), nil
}

func (s *shared) addRow(row domain.Row) (int, error) {
	data, err := s.codec.Encode(row)
	if err != nil {
		return 0, err
	}
	skey, err := s.sortedKey(row)
	if err != nil {
		return 0, err
	}

	if !s.spec.Distinct {
		err = s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(skey, data)
		})
		if err != nil {
			return 0, fmt.Errorf("badger store add row: %w", err)
		}
		s.count++
		return s.count, nil
	}

	dkey, err := s.distinctKey(row)
	if err != nil {
		return 0, err
	}
	inserted := false
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(dkey)
		switch {
		case err == nil:
			// Replace: drop the stale sorted entry first.
			oldSKey, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(oldSKey); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			inserted = true
		default:
			return err
		}
		if err := txn.Set(skey, data); err != nil {
			return err
		}
		return txn.Set(dkey, skey)
	})
	if err != nil {
		return 0, fmt.Errorf("badger store add distinct row: %w", err)
	}
	if inserted {
		s.count++
	}
	return s.count, nil
}

func (s *shared) release() error {
	err := s.db.Close()
	if s.dir != "" {
		if rmErr := os.RemoveAll(s.dir); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	if err != nil {
		return fmt.Errorf("close badger spill store: %w", err)
	}
	s.log.Debugw("external result released", "backend", "badger", "dir", s.dir)
	return nil
}

// Result is one handle over the shared storage. Iteration state (the open
// transaction and iterator) is per handle, which is what lets a shallow
// copy and its source be read independently.
type Result struct {
	inner   *shared
	txn     *badger.Txn
	it      *badger.Iterator
	started bool
	closed  bool
}

var errClosed = errors.New("badger store: handle is closed")

// AddRow implements store.ExternalResult.
func (r *Result) AddRow(row domain.Row) (int, error) {
	if r.closed {
		return 0, errClosed
	}
	return r.inner.addRow(row)
}

// AddRows implements store.ExternalResult.
func (r *Result) AddRows(rows []domain.Row) (int, error) {
	if r.closed {
		return 0, errClosed
	}
	n := r.inner.count
	for _, row := range rows {
		var err error
		n, err = r.inner.addRow(row)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Next implements store.ExternalResult. A nil row means end of data.
func (r *Result) Next() (domain.Row, error) {
	if r.closed {
		return nil, errClosed
	}
	if !r.started {
		r.txn = r.inner.db.NewTransaction(false)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixSorted
		r.it = r.txn.NewIterator(opts)
		r.it.Rewind()
		r.started = true
	} else if r.it.Valid() {
		r.it.Next()
	}
	if !r.it.Valid() {
		return nil, nil
	}
	data, err := r.it.Item().ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("badger store read row: %w", err)
	}
	return r.inner.codec.Decode(data)
}

// Reset implements store.ExternalResult: iteration restarts from the
// first row on the next call to Next.
func (r *Result) Reset() error {
	if r.closed {
		return errClosed
	}
	r.stopIteration()
	return nil
}

// Contains implements store.ExternalResult.
func (r *Result) Contains(row domain.Row) (bool, error) {
	if r.closed {
		return false, errClosed
	}
	if !r.inner.spec.Distinct {
		return false, domain.NewErrInternal("contains on a non-distinct store")
	}
	dkey, err := r.inner.distinctKey(row)
	if err != nil {
		return false, err
	}
	found := false
	err = r.inner.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(dkey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err == nil {
			found = true
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("badger store contains: %w", err)
	}
	return found, nil
}

// RemoveRow implements store.ExternalResult.
func (r *Result) RemoveRow(row domain.Row) (int, error) {
	if r.closed {
		return 0, errClosed
	}
	if !r.inner.spec.Distinct {
		return 0, domain.NewErrInternal("removeRow on a non-distinct store")
	}
	dkey, err := r.inner.distinctKey(row)
	if err != nil {
		return 0, err
	}
	removed := false
	err = r.inner.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(dkey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		skey, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(skey); err != nil {
			return err
		}
		if err := txn.Delete(dkey); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger store remove row: %w", err)
	}
	if removed {
		r.inner.count--
	}
	return r.inner.count, nil
}

// CreateShallowCopy implements store.ExternalResult: the copy shares the
// backing DB and gets fresh iteration state.
func (r *Result) CreateShallowCopy() store.ExternalResult {
	if r.closed {
		return nil
	}
	r.inner.refs.Add(1)
	return &Result{inner: r.inner}
}

// Close implements store.ExternalResult. Safe to call more than once; the
// backing DB is released when the last handle closes.
func (r *Result) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.stopIteration()
	if r.inner.refs.Add(-1) == 0 {
		return r.inner.release()
	}
	return nil
}

func (r *Result) stopIteration() {
	if r.it != nil {
		r.it.Close()
		r.it = nil
	}
	if r.txn != nil {
		r.txn.Discard()
		r.txn = nil
	}
	r.started = false
}
