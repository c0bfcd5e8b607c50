package archive

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentlite/core"
)

// ErrNotFound is returned when no record exists for a task id.
var ErrNotFound = errors.New("task record not found")

// Record is an immutable snapshot of a task package.
type Record struct {
	ID          string      `json:"id"`
	ParentID    string      `json:"parent_id,omitempty"`
	Depth       int         `json:"depth"`
	Instruction string      `json:"instruction"`
	Originator  string      `json:"originator"`
	Assignee    string      `json:"assignee,omitempty"`
	Status      core.Status `json:"status"`
	Result      string      `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
	Diagnostic  string      `json:"diagnostic,omitempty"`
	Children    []string    `json:"children,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
}

// NewRecord snapshots t.
func NewRecord(t *core.TaskPackage) Record {
	r := Record{
		ID:          t.ID,
		ParentID:    t.ParentID,
		Depth:       t.Depth,
		Instruction: t.Instruction,
		Originator:  t.Originator,
		Assignee:    t.Assignee(),
		Status:      t.Status(),
		Result:      t.Result(),
		Diagnostic:  t.Diagnostic(),
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt(),
	}
	if err := t.Err(); err != nil {
		r.Error = err.Error()
		r.ErrorKind = core.ErrorKind(err)
	}
	for _, c := range t.Children() {
		r.Children = append(r.Children, c.ID)
	}
	return r
}

func (r Record) clone() Record {
	if r.Children != nil {
		r.Children = append([]string(nil), r.Children...)
	}
	return r
}

// Store persists task records.
type Store interface {
	// Save snapshots t, replacing an earlier record with the same id.
	Save(t *core.TaskPackage) error
	// Get returns the record for id or ErrNotFound.
	Get(id string) (Record, error)
	// List returns all records ordered by creation time.
	List() ([]Record, error)
	// Children returns the records whose parent is parentID, ordered by creation time.
	Children(parentID string) ([]Record, error)
}

// InMemoryStore is a volatile Store keeping records in a process local map.
// It is safe for concurrent access and best suited for tests or short-lived
// processes. Returned records are copies.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

// Save implements Store.
func (s *InMemoryStore) Save(t *core.TaskPackage) error {
	r := NewRecord(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
	return nil
}

// Get implements Store.
func (s *InMemoryStore) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.clone(), nil
}

// List implements Store.
func (s *InMemoryStore) List() ([]Record, error) {
	return s.filter(func(Record) bool { return true }), nil
}

// Children implements Store.
func (s *InMemoryStore) Children(parentID string) ([]Record, error) {
	return s.filter(func(r Record) bool { return r.ParentID == parentID }), nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *InMemoryStore) filter(keep func(Record) bool) []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
