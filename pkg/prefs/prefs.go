// Package prefs keeps per-visitor bookmark and like sets.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/japaniel/thirukkural/pkg/db"
	"github.com/japaniel/thirukkural/pkg/kural"
)

// Kind names a preference set.
type Kind string

const (
	Bookmark Kind = "bookmark"
	Like     Kind = "like"
)

var (
	ErrInvalidNumber = errors.New("kural number out of range")
	ErrInvalidKind   = errors.New("unknown preference kind")
	ErrNoVisitor     = errors.New("missing visitor id")
)

// ParseKind accepts both the singular and plural route forms.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bookmark", "bookmarks":
		return Bookmark, nil
	case "like", "likes":
		return Like, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Store is a set of kural numbers per visitor and kind.
type Store interface {
	Toggle(ctx context.Context, visitor string, kind Kind, number int) (bool, error)
	Has(ctx context.Context, visitor string, kind Kind, number int) (bool, error)
	List(ctx context.Context, visitor string, kind Kind) ([]int, error)
	// Set forces membership on or off; repeating it changes nothing.
	Set(ctx context.Context, visitor string, kind Kind, number int, on bool) error
}

func check(visitor string, kind Kind, number int) error {
	if visitor == "" {
		return ErrNoVisitor
	}
	if kind != Bookmark && kind != Like {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if !kural.ValidNumber(number) {
		return fmt.Errorf("%w: %d", ErrInvalidNumber, number)
	}
	return nil
}

type key struct {
	visitor string
	kind    Kind
}

// Memory is a Store held in process memory.
type Memory struct {
	mu   sync.Mutex
	sets map[key]map[int]struct{}
}

func NewMemory() *Memory {
	return &Memory{sets: make(map[key]map[int]struct{})}
}

func (m *Memory) Toggle(_ context.Context, visitor string, kind Kind, number int) (bool, error) {
	if err := check(visitor, kind, number); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{visitor, kind}
	set := m.sets[k]
	if _, ok := set[number]; ok {
		delete(set, number)
		return false, nil
	}
	if set == nil {
		set = make(map[int]struct{})
		m.sets[k] = set
	}
	set[number] = struct{}{}
	return true, nil
}

func (m *Memory) Set(_ context.Context, visitor string, kind Kind, number int, on bool) error {
	if err := check(visitor, kind, number); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{visitor, kind}
	if !on {
		delete(m.sets[k], number)
		return nil
	}
	if m.sets[k] == nil {
		m.sets[k] = make(map[int]struct{})
	}
	m.sets[k][number] = struct{}{}
	return nil
}

func (m *Memory) Has(_ context.Context, visitor string, kind Kind, number int) (bool, error) {
	if err := check(visitor, kind, number); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sets[key{visitor, kind}][number]
	return ok, nil
}

func (m *Memory) List(_ context.Context, visitor string, kind Kind) ([]int, error) {
	if err := check(visitor, kind, 1); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[key{visitor, kind}]
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// SQL is a Store backed by the preferences table.
type SQL struct {
	DB *sql.DB
}

func NewSQL(conn *sql.DB) *SQL { return &SQL{DB: conn} }

// Toggle runs inside a transaction so concurrent toggles of the same number
// alternate cleanly.
func (s *SQL) Toggle(ctx context.Context, visitor string, kind Kind, number int) (bool, error) {
	if err := check(visitor, kind, number); err != nil {
		return false, err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin toggle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	on, err := db.TogglePreference(tx, visitor, string(kind), number)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit toggle: %w", err)
	}
	return on, nil
}

func (s *SQL) Set(_ context.Context, visitor string, kind Kind, number int, on bool) error {
	if err := check(visitor, kind, number); err != nil {
		return err
	}
	return db.SetPreference(s.DB, visitor, string(kind), number, on)
}

func (s *SQL) Has(_ context.Context, visitor string, kind Kind, number int) (bool, error) {
	if err := check(visitor, kind, number); err != nil {
		return false, err
	}
	return db.HasPreference(s.DB, visitor, string(kind), number)
}

func (s *SQL) List(_ context.Context, visitor string, kind Kind) ([]int, error) {
	if err := check(visitor, kind, 1); err != nil {
		return nil, err
	}
	return db.ListPreferences(s.DB, visitor, string(kind))
}
