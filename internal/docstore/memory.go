package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps documents in process. Used for tests and DOC_STORE=memory.
type Memory struct {
	mu   sync.Mutex
	docs map[string][]byte
	hub  *Hub
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte), hub: NewHub()}
}

func (m *Memory) Get(ctx context.Context, path string) (Snapshot, error) {
	if _, _, err := Split(path); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(path)
}

func (m *Memory) Set(ctx context.Context, path string, data map[string]interface{}, mergeFields bool) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(path, data, mergeFields)
}

func (m *Memory) Update(ctx context.Context, path string, data map[string]interface{}) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return m.writeLocked(path, data, true)
}

func (m *Memory) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeLocked(Doc(collection, id), data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	m.hub.Publish(missing(path))
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	prefix := strings.Trim(collection, "/") + "/"
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Snapshot
	for path := range m.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		s, err := m.snapshotLocked(path)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return order(out, q), nil
}

func (m *Memory) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	if _, _, err := Split(path); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.snapshotLocked(path)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := m.hub.Watch(ctx, s)
	return ch, cancel, nil
}

func (m *Memory) writeLocked(path string, data map[string]interface{}, mergeFields bool) error {
	next, err := normalize(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if mergeFields {
		if raw, ok := m.docs[path]; ok {
			current := map[string]interface{}{}
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			next = merge(current, next)
		}
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	m.docs[path] = raw

	s, err := m.snapshotLocked(path)
	if err != nil {
		return err
	}
	m.hub.Publish(s)
	return nil
}

func (m *Memory) snapshotLocked(path string) (Snapshot, error) {
	raw, ok := m.docs[path]
	if !ok {
		return missing(path), nil
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	_, id, _ := Split(path)
	return Snapshot{Path: path, ID: id, Exists: true, Data: data}, nil
}

func missing(path string) Snapshot {
	_, id, _ := Split(path)
	return Snapshot{Path: path, ID: id}
}
