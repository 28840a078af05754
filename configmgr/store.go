// Package configmgr is the process-wide transactional key/value config
// store: spec.md §3's "Config entry"/"Transaction" data model and §4.8's
// get/set/start/commit/rollback/traverse contract. Ported in spirit from
// _examples/original_source/configmgr (the configctl CLI shows the
// get/set/transaction call shape) with persistence delegated to a
// pluggable configmgr/backend.Backend.
package configmgr

import (
	"sync"
	"time"

	"github.com/jiufeng-go/jiufeng/configmgr/backend"
	"github.com/jiufeng-go/jiufeng/internal/jferr"
	"github.com/jiufeng-go/jiufeng/internal/logging"
)

// DefaultTransactionTimeout is the age past which an active transaction
// is swept to timed-out, per spec.md §8 scenario C.
const DefaultTransactionTimeout = 30 * time.Second

// defaultSweepInterval is how often the background sweep goroutine
// checks for expired transactions, in addition to the on-demand check
// at commit (spec.md §4.8 "Timeout sweep").
const defaultSweepInterval = 5 * time.Second

// Params configures Init.
type Params struct {
	// Backend is the persistence layer's configuration; Store is the
	// backend instance itself and is required.
	Backend backend.Config
	Store   backend.Backend

	// MaxConcurrentTransactions bounds the active-transaction set;
	// StartTransaction returns ErrReachMaxTransaction past this. Zero
	// means unbounded.
	MaxConcurrentTransactions int

	// TransactionTimeout overrides DefaultTransactionTimeout.
	TransactionTimeout time.Duration

	Logger *logging.Logger
}

// Store is the committed config map plus its active transaction set,
// per spec.md §3's "Config entry"/"Transaction" and §5's concurrency
// model (one read/write lock over the committed map).
type Store struct {
	mu        sync.RWMutex
	committed map[string]string
	backend   backend.Backend

	txMu         sync.Mutex
	transactions map[uint64]*transaction
	nextID       uint64
	maxTx        int
	timeout      time.Duration

	log       *logging.Logger
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// Init loads the committed map from the backend and starts the
// background timeout sweep.
func Init(p Params) (*Store, error) {
	if p.Store == nil {
		return nil, ErrUnsupportedPersistencyType.New("Init")
	}
	if err := p.Store.Open(p.Backend); err != nil {
		return nil, jferr.Wrap("Init", ErrPersistencyInitError.Code(), err)
	}
	entries, err := p.Store.Load()
	if err != nil {
		return nil, jferr.Wrap("Init", ErrPersistencyInitError.Code(), err)
	}

	timeout := p.TransactionTimeout
	if timeout <= 0 {
		timeout = DefaultTransactionTimeout
	}
	log := p.Logger
	if log == nil {
		log = logging.Default()
	}

	s := &Store{
		committed:    entries,
		backend:      p.Store,
		transactions: make(map[uint64]*transaction),
		nextID:       1,
		maxTx:        p.MaxConcurrentTransactions,
		timeout:      timeout,
		log:          log,
		stopSweep:    make(chan struct{}),
		sweepDone:    make(chan struct{}),
	}
	go s.sweepLoop()

	log.Info("configmgr store initialized", "entries", len(entries))
	return s, nil
}

// Fini stops the background sweep and closes the backend.
func (s *Store) Fini() error {
	close(s.stopSweep)
	<-s.sweepDone
	return s.backend.Close()
}

func (s *Store) sweepLoop() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now()
	s.txMu.Lock()
	defer s.txMu.Unlock()
	for _, tx := range s.transactions {
		if tx.state == txActive && now.Sub(tx.start) > s.timeout {
			tx.state = txTimedOut
		}
	}
}

// Get returns the value for name. If txnID is a valid active
// transaction, a pending write under that id shadows the committed
// value; txnID 0 always reads the committed store, per spec.md §4.8.
func (s *Store) Get(txnID uint64, name string) (string, error) {
	if txnID != 0 {
		if v, ok := s.pendingGet(txnID, name); ok {
			return v, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.committed[name]
	if !ok {
		return "", ErrNotFound.New("Get")
	}
	return v, nil
}

// pendingGet returns a transaction's own buffered write for name, if
// any. A missing or no-longer-active transaction id is not an error
// here — spec.md §4.8 says Get falls through to the committed value in
// that case.
func (s *Store) pendingGet(txnID uint64, name string) (value string, ok bool) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	tx, exists := s.transactions[txnID]
	if !exists || tx.state != txActive {
		return "", false
	}
	if i, has := tx.index[name]; has {
		return tx.writes[i].value, true
	}
	return "", false
}

// Set writes name=value. If txnID is a valid active transaction, the
// write is buffered in that transaction's write set (append, or
// replace-in-place if name was already written by it); otherwise it is
// applied directly to the committed store and persisted, per spec.md
// §4.8.
func (s *Store) Set(txnID uint64, name, value string) error {
	if txnID != 0 {
		return s.pendingSet(txnID, name, value)
	}

	s.mu.Lock()
	s.committed[name] = value
	snapshot := cloneMap(s.committed)
	s.mu.Unlock()

	return s.flush(snapshot)
}

func (s *Store) pendingSet(txnID uint64, name, value string) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	tx, exists := s.transactions[txnID]
	if !exists || tx.state != txActive {
		return ErrTransactionNotFound.New("Set")
	}
	tx.put(name, value)
	return nil
}

// StartTransaction allocates a nonzero, monotonically increasing
// transaction id, per Design Notes §9.
func (s *Store) StartTransaction() (uint64, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if s.maxTx > 0 && s.countActiveLocked() >= s.maxTx {
		return 0, ErrReachMaxTransaction.New("StartTransaction")
	}

	id := s.nextID
	s.nextID++
	s.transactions[id] = &transaction{
		id:    id,
		start: time.Now(),
		state: txActive,
		index: make(map[string]int),
	}
	return id, nil
}

func (s *Store) countActiveLocked() int {
	n := 0
	for _, tx := range s.transactions {
		if tx.state == txActive {
			n++
		}
	}
	return n
}

// CommitTransaction applies every buffered write in insertion order to
// the committed map under the store lock, flushes to the backend, and
// releases the id. Reports ErrTimeout if the transaction aged past the
// timeout (promoting it to timed-out) and ErrTransactionNotFound if the
// id is unknown or already finished, per spec.md §4.8.
func (s *Store) CommitTransaction(id uint64) error {
	s.txMu.Lock()
	tx, exists := s.transactions[id]
	if !exists {
		s.txMu.Unlock()
		return ErrTransactionNotFound.New("CommitTransaction")
	}
	if tx.state == txActive && time.Since(tx.start) > s.timeout {
		tx.state = txTimedOut
	}
	if tx.state != txActive {
		state := tx.state
		delete(s.transactions, id)
		s.txMu.Unlock()
		if state == txTimedOut {
			return ErrTimeout.New("CommitTransaction")
		}
		return ErrTransactionNotFound.New("CommitTransaction")
	}
	writes := tx.writes
	delete(s.transactions, id)
	s.txMu.Unlock()

	s.mu.Lock()
	for _, w := range writes {
		s.committed[w.name] = w.value
	}
	snapshot := cloneMap(s.committed)
	s.mu.Unlock()

	return s.flush(snapshot)
}

// RollbackTransaction discards the transaction's writes and releases
// its id.
func (s *Store) RollbackTransaction(id uint64) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if _, exists := s.transactions[id]; !exists {
		return ErrTransactionNotFound.New("RollbackTransaction")
	}
	delete(s.transactions, id)
	return nil
}

// Traverse calls fn for every committed (name, value) pair in
// unspecified order, stopping early if fn returns false.
func (s *Store) Traverse(fn func(name, value string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, value := range s.committed {
		if !fn(name, value) {
			return
		}
	}
}

// flush persists snapshot, wrapping whatever the backend reports as a
// SQL_EVAL_ERROR-equivalent per spec.md §4.8 — the file backend's I/O
// failures and the sqlite backend's query failures are both "the
// backend failed to persist", which is all callers outside the backend
// itself need to distinguish.
func (s *Store) flush(snapshot map[string]string) error {
	if err := s.backend.Flush(snapshot); err != nil {
		return jferr.Wrap("flush", ErrSQLEvalError.Code(), err)
	}
	return nil
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
