// Package memory is a process-local repository driver for development and
// tests. It enforces the same keys and cascades as the postgres schema.
package memory

import (
	"context"
	"sort"
	"sync"

	"smartfarm.io/farm/internal/repository"
)

var _ repository.Repository = (*Store)(nil)

type planVariety struct {
	planID    string
	varietyID string
}

type state struct {
	users      map[string]userRow
	accounts   map[string]accountRow
	plots      map[string]plotRow
	cropTypes  map[string]cropTypeRow
	varieties  map[string]varietyRow
	plans      map[string]planRow
	planLinks  map[planVariety]int64
	tasks      map[string]taskRow
	cycles     map[string]cycleRow
	activities map[string]activityRow
	seq        int64
}

func newState() *state {
	return &state{
		users:      make(map[string]userRow),
		accounts:   make(map[string]accountRow),
		plots:      make(map[string]plotRow),
		cropTypes:  make(map[string]cropTypeRow),
		varieties:  make(map[string]varietyRow),
		plans:      make(map[string]planRow),
		planLinks:  make(map[planVariety]int64),
		tasks:      make(map[string]taskRow),
		cycles:     make(map[string]cycleRow),
		activities: make(map[string]activityRow),
	}
}

func (s *state) clone() *state {
	cp := &state{
		users:      cloneMap(s.users),
		accounts:   cloneMap(s.accounts),
		plots:      cloneMap(s.plots),
		cropTypes:  cloneMap(s.cropTypes),
		varieties:  cloneMap(s.varieties),
		plans:      cloneMap(s.plans),
		planLinks:  cloneMap(s.planLinks),
		tasks:      cloneMap(s.tasks),
		cycles:     cloneMap(s.cycles),
		activities: cloneMap(s.activities),
		seq:        s.seq,
	}
	return cp
}

// next returns a monotonically increasing insertion counter used to break
// ordering ties the way a serial column would.
func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store is a mutex-guarded in-memory Repository.
type Store struct {
	mu       *sync.RWMutex
	st       *state
	inTx     bool
	onCommit *[]func()
}

// New returns an empty store.
func New() *Store {
	return &Store{mu: &sync.RWMutex{}, st: newState()}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// InTx runs fn on a copy of the state and publishes the copy only when fn
// succeeds. Writers are serialized for the duration of fn.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	hooks, err := s.runTx(ctx, fn)
	if err != nil {
		return err
	}
	for _, h := range hooks {
		h()
	}
	return nil
}

func (s *Store) runTx(ctx context.Context, fn func(tx repository.Repository) error) ([]func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var hooks []func()
	tx := &Store{mu: s.mu, st: s.st.clone(), inTx: true, onCommit: &hooks}
	if err := fn(tx); err != nil {
		return nil, err
	}
	s.st = tx.st
	return hooks, nil
}

// AfterCommit defers fn until the enclosing InTx has published its writes.
// Hooks run after the store lock is released; a rolled back tx drops them.
// Outside a transaction fn runs immediately.
func (s *Store) AfterCommit(fn func()) {
	if !s.inTx {
		fn()
		return
	}
	*s.onCommit = append(*s.onCommit, fn)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func sortedValues[V any](m map[string]V, keep func(V) bool, less func(a, b V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
