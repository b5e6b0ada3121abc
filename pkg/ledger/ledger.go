// Package ledger records a named, ordered log of mutating repository operations.
//
// The ledger is application bookkeeping for audit and compensating replay. It is independent of the
// database transactions: entries are appended when the owning repository call completes, whatever the
// database commit order.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcodd23/go-micro-dbfunc/pkg/utilx/copyx"
	"github.com/pkg/errors"
)

// ErrTransactionNotBegun is returned when an operation targets a transaction name that was never begun
// (or was already popped).
var ErrTransactionNotBegun = errors.New("transaction not begun")

// OperationKind - kind of the recorded mutation.
type OperationKind string

const (
	Insert    OperationKind = "insert"
	Update    OperationKind = "update"
	Delete    OperationKind = "delete"
	IntInsert OperationKind = "int_insert"
	IntUpdate OperationKind = "int_update"
	IntDelete OperationKind = "int_delete"
)

// ParseOperationKind - parse a kind name, e.g. "int_insert".
func ParseOperationKind(name string) (OperationKind, bool) {
	kind := OperationKind(name)

	switch kind {
	case Insert, Update, Delete, IntInsert, IntUpdate, IntDelete:
		return kind, true
	default:
		return "", false
	}
}

// Entry - one recorded mutation.
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	Kind        OperationKind  `json:"kind"`
	Table       string         `json:"table"`
	Data        map[string]any `json:"data"`
	Transaction string         `json:"transaction"`
	RecordedAt  time.Time      `json:"recordedAt"`
}

// Ledger - in memory, process wide map of transaction name to ordered entries.
// It is safe for concurrent use: entries appended under the same name from different goroutines are
// serialized by the ledger lock, still callers should use one name per logical unit of work.
type Ledger struct {
	mu           sync.Mutex
	transactions map[string][]Entry
	now          func() time.Time
}

// New - empty ledger.
func New() *Ledger {
	return &Ledger{
		transactions: make(map[string][]Entry),
		now:          time.Now,
	}
}

// Begin opens the transaction name. Beginning an existing name is a no-op and keeps its entries.
func (l *Ledger) Begin(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.transactions[name]; !ok {
		l.transactions[name] = []Entry{}
	}
}

// Operation appends an entry to the transaction name.
// The row is deep copied, so later mutations of the caller map do not alter the recorded history.
func (l *Ledger) Operation(kind OperationKind, table string, row map[string]any, name string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.transactions[name]
	if !ok {
		return Entry{}, errors.Wrapf(ErrTransactionNotBegun, "transaction '%s'", name)
	}

	entry := Entry{
		ID:          uuid.New(),
		Kind:        kind,
		Table:       table,
		Data:        copyx.CloneMap(row),
		Transaction: name,
		RecordedAt:  l.now().UTC(),
	}

	l.transactions[name] = append(entries, entry)

	recorded := entry
	recorded.Data = copyx.CloneMap(entry.Data)

	return recorded, nil
}

func (l *Ledger) Insert(table string, data map[string]any, name string) (Entry, error) {
	return l.Operation(Insert, table, data, name)
}

func (l *Ledger) Update(table string, data map[string]any, name string) (Entry, error) {
	return l.Operation(Update, table, data, name)
}

func (l *Ledger) Delete(table string, data map[string]any, name string) (Entry, error) {
	return l.Operation(Delete, table, data, name)
}

func (l *Ledger) IntInsert(table string, data map[string]any, name string) (Entry, error) {
	return l.Operation(IntInsert, table, data, name)
}

func (l *Ledger) IntUpdate(table string, data map[string]any, name string) (Entry, error) {
	return l.Operation(IntUpdate, table, data, name)
}

func (l *Ledger) IntDelete(table string, data map[string]any, name string) (Entry, error) {
	return l.Operation(IntDelete, table, data, name)
}

// Commit returns the entries accumulated under name, in insertion order.
// With pop the name is removed and goes back to the absent state.
// The boolean is false when the name is absent.
func (l *Ledger) Commit(name string, pop bool) ([]Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.transactions[name]
	if !ok {
		return nil, false
	}

	if pop {
		delete(l.transactions, name)
		return entries, true
	}

	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e
		out[i].Data = copyx.CloneMap(e.Data)
	}

	return out, true
}

// Names - open transaction names, sorted.
func (l *Ledger) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.transactions))
	for name := range l.transactions {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Len - number of entries under name, -1 when absent.
func (l *Ledger) Len(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.transactions[name]
	if !ok {
		return -1
	}

	return len(entries)
}
