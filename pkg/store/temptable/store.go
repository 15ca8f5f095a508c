// Package temptable is the SQLite-backed external result: spilled rows go
// into a temporary database file, ordering is delegated to an ORDER BY
// over memcomparable sort keys and distinct semantics to a primary key on
// the dedup key.
package temptable

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kasuganosora/resultset/pkg/logger"
	"github.com/kasuganosora/resultset/pkg/result/domain"
	"github.com/kasuganosora/resultset/pkg/store"
)

// Config configuration for the temp-table backend
type Config struct {
	// Dir directory for temporary database files; empty means the
	// system temp directory.
	Dir string `json:"dir"`
}

// DefaultConfig returns default configuration
func DefaultConfig(dir string) *Config {
	return &Config{Dir: dir}
}

// Factory builds SQLite temp-table external results.
type Factory struct {
	cfg *Config
	log *logger.Logger
}

// NewFactory creates a factory.
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
func (f *Factory) Name() string { return "temptable" }

// Create implements store.Factory.
func (f *Factory) Create(spec *store.CreateSpec) (store.ExternalResult, error) {
	dir := spec.Dir
	if dir == "" {
		dir = f.cfg.Dir
	}
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "result-"+uuid.NewString()+".db")

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open temp table store: %w", err)
	}

	ddl := `CREATE TABLE result_rows (seq INTEGER PRIMARY KEY, sk BLOB NOT NULL, data BLOB NOT NULL);
CREATE INDEX result_rows_sk ON result_rows (sk)`
	if spec.Distinct {
		ddl = `CREATE TABLE result_rows (dk BLOB PRIMARY KEY, sk BLOB NOT NULL, data BLOB NOT NULL);
CREATE INDEX result_rows_sk ON result_rows (sk)`
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("create temp table: %w", err)
	}

	f.log.Debugw("external result created", "backend", "temptable",
		"path", path, "distinct", spec.Distinct, "sorted", spec.Sort != nil)

	inner := &shared{
		db:    db,
		spec:  spec,
		codec: store.NewRowCodec(),
		keys:  store.NewKeyEncoder(spec.Sort),
		log:   f.log,
		path:  path,
	}
	inner.refs.Store(1)
	return &Result{inner: inner}, nil
}

type shared struct {
	db    *sql.DB
	spec  *store.CreateSpec
	codec *store.RowCodec
	keys  *store.KeyEncoder
	log   *logger.Logger
	path  string
	refs  atomic.Int32
	seq   uint64
	count int
}

// sortKey returns the physical ordering key: the memcomparable sort key
// with an insertion sequence suffix, so BLOB order is deterministic and
// falls back to insertion order when no sort was requested.
func (s *shared) sortKey(row domain.Row) ([]byte, error) {
	key, err := s.keys.EncodeSortKey(make([]byte, 0, 32), row)
	if err != nil {
		return nil, err
	}
	s.seq++
	return binary.BigEndian.AppendUint64(key, s.seq), nil
}

func (s *shared) addRow(row domain.Row) (int, error) {
	data, err := s.codec.Encode(row)
	if err != nil {
		return 0, err
	}
	sk, err := s.sortKey(row)
	if err != nil {
		return 0, err
	}

	if !s.spec.Distinct {
		if _, err := s.db.Exec(`INSERT INTO result_rows (sk, data) VALUES (?, ?)`, sk, data); err != nil {
			return 0, fmt.Errorf("temp table add row: %w", err)
		}
		s.count++
		return s.count, nil
	}

	dk, err := s.codec.DistinctKey(row, s.spec.VisibleColumnCount)
	if err != nil {
		return 0, err
	}
	var exists bool
	err = s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM result_rows WHERE dk = ?)`, dk).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("temp table membership probe: %w", err)
	}
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO result_rows (dk, sk, data) VALUES (?, ?, ?)`, dk, sk, data); err != nil {
		return 0, fmt.Errorf("temp table add distinct row: %w", err)
	}
	if !exists {
		s.count++
	}
	return s.count, nil
}

func (s *shared) release() error {
	err := s.db.Close()
	os.Remove(s.path)
	os.Remove(s.path + "-wal")
	os.Remove(s.path + "-shm")
	if err != nil {
		return fmt.Errorf("close temp table store: %w", err)
	}
	s.log.Debugw("external result released", "backend", "temptable", "path", s.path)
	return nil
}

// Result is one handle over the shared temp table. The open *sql.Rows is
// per handle, so a shallow copy iterates independently of its source.
type Result struct {
	inner     *shared
	rows      *sql.Rows
	exhausted bool
	closed    bool
}

var errClosed = errors.New("temp table store: handle is closed")

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
	if r.exhausted {
		return nil, nil
	}
	if r.rows == nil {
		rows, err := r.inner.db.Query(`SELECT data FROM result_rows ORDER BY sk`)
		if err != nil {
			return nil, fmt.Errorf("temp table scan: %w", err)
		}
		r.rows = rows
	}
	if !r.rows.Next() {
		err := r.rows.Err()
		r.rows.Close()
		r.rows = nil
		r.exhausted = true
		if err != nil {
			return nil, fmt.Errorf("temp table scan: %w", err)
		}
		return nil, nil
	}
	var data []byte
	if err := r.rows.Scan(&data); err != nil {
		return nil, fmt.Errorf("temp table read row: %w", err)
	}
	return r.inner.codec.Decode(data)
}

// Reset implements store.ExternalResult.
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
	dk, err := r.inner.codec.DistinctKey(row, r.inner.spec.VisibleColumnCount)
	if err != nil {
		return false, err
	}
	var exists bool
	err = r.inner.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM result_rows WHERE dk = ?)`, dk).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("temp table contains: %w", err)
	}
	return exists, nil
}

// RemoveRow implements store.ExternalResult.
func (r *Result) RemoveRow(row domain.Row) (int, error) {
	if r.closed {
		return 0, errClosed
	}
	if !r.inner.spec.Distinct {
		return 0, domain.NewErrInternal("removeRow on a non-distinct store")
	}
	dk, err := r.inner.codec.DistinctKey(row, r.inner.spec.VisibleColumnCount)
	if err != nil {
		return 0, err
	}
	res, err := r.inner.db.Exec(`DELETE FROM result_rows WHERE dk = ?`, dk)
	if err != nil {
		return 0, fmt.Errorf("temp table remove row: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.inner.count--
	}
	return r.inner.count, nil
}

// CreateShallowCopy implements store.ExternalResult.
func (r *Result) CreateShallowCopy() store.ExternalResult {
	if r.closed {
		return nil
	}
	r.inner.refs.Add(1)
	return &Result{inner: r.inner}
}

// Close implements store.ExternalResult. Safe to call more than once.
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
	if r.rows != nil {
		r.rows.Close()
		r.rows = nil
	}
	r.exhausted = false
}
