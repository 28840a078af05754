package configmgr

import (
	"errors"
	"testing"
	"time"

	"github.com/jiufeng-go/jiufeng/configmgr/backend/memory"
)

func newTestStore(t *testing.T, timeout time.Duration) *Store {
	t.Helper()
	s, err := Init(Params{
		Store:              memory.New(),
		TransactionTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Fini() })
	return s
}

// TestTransactionCommit covers spec.md §8 Scenario A.
func TestTransactionCommit(t *testing.T) {
	s := newTestStore(t, time.Hour)

	if err := s.Set(0, "k", "v0"); err != nil {
		t.Fatalf("Set(0): %v", err)
	}

	id, err := s.StartTransaction()
	if err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := s.Set(id, "k", "v1"); err != nil {
		t.Fatalf("Set(id): %v", err)
	}

	got, err := s.Get(id, "k")
	if err != nil || got != "v1" {
		t.Fatalf("Get(id) = %q, %v, want v1, nil", got, err)
	}
	got, err = s.Get(0, "k")
	if err != nil || got != "v0" {
		t.Fatalf("Get(0) before commit = %q, %v, want v0, nil", got, err)
	}

	if err := s.CommitTransaction(id); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	got, err = s.Get(0, "k")
	if err != nil || got != "v1" {
		t.Fatalf("Get(0) after commit = %q, %v, want v1, nil", got, err)
	}
}

// TestTransactionRollback covers spec.md §8 Scenario B.
func TestTransactionRollback(t *testing.T) {
	s := newTestStore(t, time.Hour)
	if err := s.Set(0, "k", "v0"); err != nil {
		t.Fatalf("Set(0): %v", err)
	}

	id, err := s.StartTransaction()
	if err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := s.Set(id, "k", "v1"); err != nil {
		t.Fatalf("Set(id): %v", err)
	}
	if err := s.RollbackTransaction(id); err != nil {
		t.Fatalf("RollbackTransaction: %v", err)
	}

	got, err := s.Get(0, "k")
	if err != nil || got != "v0" {
		t.Fatalf("Get(0) after rollback = %q, %v, want v0, nil", got, err)
	}
	if got, err := s.Get(id, "k"); err != nil || got != "v0" {
		t.Fatalf("Get(id) after rollback = %q, %v, want v0, nil (a finished id reads committed state)", got, err)
	}
}

// TestTransactionTimeout covers spec.md §8 Scenario C.
func TestTransactionTimeout(t *testing.T) {
	s := newTestStore(t, 10*time.Millisecond)
	if err := s.Set(0, "k", "v0"); err != nil {
		t.Fatalf("Set(0): %v", err)
	}

	id, err := s.StartTransaction()
	if err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := s.CommitTransaction(id); !errors.Is(err, ErrTimeout) {
		t.Fatalf("CommitTransaction after timeout: err = %v, want ErrTimeout", err)
	}
	got, err := s.Get(0, "k")
	if err != nil || got != "v0" {
		t.Fatalf("Get(0) after timed-out commit = %q, %v, want v0 unchanged", got, err)
	}
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	s := newTestStore(t, time.Hour)
	if _, err := s.Get(0, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing): err = %v, want ErrNotFound", err)
	}
}

func TestStartTransactionRejectsOverMax(t *testing.T) {
	s, err := Init(Params{
		Store:                     memory.New(),
		MaxConcurrentTransactions: 1,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Fini()

	if _, err := s.StartTransaction(); err != nil {
		t.Fatalf("first StartTransaction: %v", err)
	}
	if _, err := s.StartTransaction(); !errors.Is(err, ErrReachMaxTransaction) {
		t.Fatalf("second StartTransaction: err = %v, want ErrReachMaxTransaction", err)
	}
}

func TestTraverseVisitsCommittedEntries(t *testing.T) {
	s := newTestStore(t, time.Hour)
	s.Set(0, "a", "1")
	s.Set(0, "b", "2")

	seen := make(map[string]string)
	s.Traverse(func(name, value string) bool {
		seen[name] = value
		return true
	})
	if seen["a"] != "1" || seen["b"] != "2" {
		t.Fatalf("Traverse saw %#v, want a=1 b=2", seen)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	be := memory.New()
	s1, err := Init(Params{Store: be})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s1.Set(0, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s1.Fini()

	s2, err := Init(Params{Store: be})
	if err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	defer s2.Fini()
	got, err := s2.Get(0, "k")
	if err != nil || got != "v" {
		t.Fatalf("Get after reopen = %q, %v, want v, nil", got, err)
	}
}
