// Package session holds the ownership context of a result: the database
// policy deciding the in-memory row budget, the spill backend selection,
// and the lifetime tracking of large-object values copied into results.
package session

import (
	"math"

	"github.com/kasuganosora/resultset/pkg/config"
	"github.com/kasuganosora/resultset/pkg/logger"
	"github.com/kasuganosora/resultset/pkg/result/domain"
	"github.com/kasuganosora/resultset/pkg/store"
	"github.com/kasuganosora/resultset/pkg/store/badgerstore"
	"github.com/kasuganosora/resultset/pkg/store/temptable"
)

// Unbounded is the max-memory-rows sentinel: never spill.
const Unbounded = math.MaxInt

// DefaultBackend is the spill backend used when the database does not
// name one.
const DefaultBackend = "badger"

// Database carries the per-database policy a result consults at
// construction time.
type Database struct {
	// MaxMemoryRows in-memory row budget before a result spills
	MaxMemoryRows int `json:"max_memory_rows"`

	// Persistent whether the database has backing storage at all
	Persistent bool `json:"persistent"`

	// ReadOnly read-only mode; spilling is pointless without a writable
	// store, so the budget becomes unbounded
	ReadOnly bool `json:"read_only"`

	// StoreBackend spill backend name ("badger" or "temptable")
	StoreBackend string `json:"store_backend"`

	// SpillDir directory for spilled results; empty lets the backend
	// pick (in-memory for badger, system temp for temptable)
	SpillDir string `json:"spill_dir"`
}

// DatabaseFromConfig builds the database policy from file configuration.
func DatabaseFromConfig(cfg *config.Config) *Database {
	return &Database{
		MaxMemoryRows: cfg.Result.MaxMemoryRows,
		Persistent:    true,
		StoreBackend:  cfg.Store.Backend,
		SpillDir:      cfg.Store.SpillDir,
	}
}

// Session is the owner of results produced on behalf of one caller. Usage
// is single-threaded: one producer builds a result to completion before
// any consumer iterates it.
type Session struct {
	db     *Database
	log    *logger.Logger
	stores *store.Registry
	lobs   []*domain.Lob
	closed bool
}

// New creates a session. A nil database means results never spill.
func New(db *Database, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	stores := store.NewRegistry()
	var spillDir string
	if db != nil {
		spillDir = db.SpillDir
	}
	stores.Register(badgerstore.NewFactory(badgerstore.DefaultConfig(spillDir), log))
	stores.Register(temptable.NewFactory(temptable.DefaultConfig(spillDir), log))
	return &Session{db: db, log: log, stores: stores}
}

// Database returns the owning database policy, possibly nil.
func (s *Session) Database() *Database {
	return s.db
}

// MaxMemoryRows returns the effective in-memory row budget for a new
// result: the database setting when the database is persistent and
// writable, otherwise Unbounded.
func (s *Session) MaxMemoryRows() int {
	if s.db == nil || !s.db.Persistent || s.db.ReadOnly {
		return Unbounded
	}
	return s.db.MaxMemoryRows
}

// CreateExternalResult builds a spill store for a result using the
// configured backend.
func (s *Session) CreateExternalResult(spec *store.CreateSpec) (store.ExternalResult, error) {
	backend := DefaultBackend
	if s.db != nil && s.db.StoreBackend != "" {
		backend = s.db.StoreBackend
	}
	if spec.Dir == "" && s.db != nil {
		spec.Dir = s.db.SpillDir
	}
	factory, err := s.stores.Get(backend)
	if err != nil {
		return nil, err
	}
	return factory.Create(spec)
}

// RegisterStoreFactory adds or replaces a spill backend for this session.
func (s *Session) RegisterStoreFactory(f store.Factory) {
	s.stores.Register(f)
}

// AddTemporaryLob records a large object copied into a result so the
// session can release it when it ends.
func (s *Session) AddTemporaryLob(lob *domain.Lob) {
	s.lobs = append(s.lobs, lob)
}

// TemporaryLobCount returns the number of tracked temporary lobs.
func (s *Session) TemporaryLobCount() int {
	return len(s.lobs)
}

// Close releases session-owned temporaries. Safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if len(s.lobs) > 0 {
		s.log.Debugw("releasing temporary lobs", "count", len(s.lobs))
	}
	s.lobs = nil
}
