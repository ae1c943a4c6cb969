// Package docstoretest provides an in-memory document store for tests.
package docstoretest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
)

// Call records one operation against the store.
type Call struct {
	Method string
	Path   string
}

// Store mimics the hierarchical JSON store: PUT overwrites, PATCH merges children,
// empty parents disappear, and ETags change whenever a value changes.
type Store struct {
	mu    sync.Mutex
	root  map[string]any
	calls []Call

	// FailOn, when set, is consulted before every operation; a non-nil error is returned as-is.
	FailOn func(method, path string) error
	// BeforePutIfMatch runs before the ETag comparison, letting tests inject a concurrent writer.
	BeforePutIfMatch func(path string)
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{root: map[string]any{}}
}

// Seed stores value at path, bypassing FailOn.
func (s *Store) Seed(path string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(split(path), normalize(value))
}

// Value returns the decoded value at path, or nil.
func (s *Store) Value(path string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(split(path))
}

// Calls returns the operations performed so far.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := s.before("GET", path); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return encode(s.lookup(split(path))), nil
}

func (s *Store) Put(ctx context.Context, path string, value any) (json.RawMessage, error) {
	if err := s.before("PUT", path); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := normalize(value)
	s.set(split(path), v)
	return encode(v), nil
}

func (s *Store) Patch(ctx context.Context, path string, value any) (json.RawMessage, error) {
	if err := s.before("PATCH", path); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	children := map[string]any{}
	if raw, err := json.Marshal(value); err == nil {
		_ = json.Unmarshal(raw, &children)
	}
	base := split(path)
	for k, v := range children {
		s.set(append(append([]string{}, base...), split(k)...), prune(v))
	}
	return encode(children), nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := s.before("DELETE", path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(split(path), nil)
	return nil
}

func (s *Store) GetWithETag(ctx context.Context, path string) (json.RawMessage, string, error) {
	if err := s.before("GET", path); err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := encode(s.lookup(split(path)))
	return raw, etagOf(raw), nil
}

func (s *Store) PutIfMatch(ctx context.Context, path string, value any, etag string) (json.RawMessage, string, error) {
	if err := s.before("PUT", path); err != nil {
		return nil, "", err
	}
	if hook := s.BeforePutIfMatch; hook != nil {
		hook(path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	segs := split(path)
	current := encode(s.lookup(segs))
	if tag := etagOf(current); tag != etag {
		return current, tag, docstore.ErrETagMismatch
	}
	v := normalize(value)
	s.set(segs, v)
	raw := encode(v)
	return raw, etagOf(raw), nil
}

func (s *Store) Keys(ctx context.Context, path string) ([]string, error) {
	if err := s.before("GET", path); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.lookup(split(path)).(map[string]any)
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) before(method, path string) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Path: path})
	hook := s.FailOn
	s.mu.Unlock()
	if hook != nil {
		return hook(method, path)
	}
	return nil
}

func (s *Store) lookup(segs []string) any {
	var node any = s.root
	for _, seg := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return node
}

func (s *Store) set(segs []string, value any) {
	if len(segs) == 0 {
		if m, ok := value.(map[string]any); ok {
			s.root = m
		} else {
			s.root = map[string]any{}
		}
		return
	}
	setIn(s.root, segs, value)
}

func setIn(node map[string]any, segs []string, value any) {
	key := segs[0]
	if len(segs) == 1 {
		if isEmpty(value) {
			delete(node, key)
			return
		}
		node[key] = value
		return
	}
	child, ok := node[key].(map[string]any)
	if !ok {
		if isEmpty(value) {
			return
		}
		child = map[string]any{}
		node[key] = child
	}
	setIn(child, segs[1:], value)
	if len(child) == 0 {
		delete(node, key)
	}
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	m, ok := value.(map[string]any)
	return ok && len(m) == 0
}

func split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// normalize round-trips value through JSON so the tree only holds generic JSON types.
func normalize(value any) any {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return prune(out)
}

func prune(value any) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	for k, v := range m {
		v = prune(v)
		if isEmpty(v) {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func encode(value any) json.RawMessage {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return raw
}

func etagOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null_etag"
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}
