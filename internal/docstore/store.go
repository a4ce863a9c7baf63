// Package docstore is the remote document store used for habits and alarms.
// Documents live at slash separated paths such as users/{uid}/habits/{hid}.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// Store is the document store collaborator. A missing document is not an
// error for Get; it comes back with Exists false.
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set writes data at path. With merge, only the given top-level fields
	// are replaced and the rest of the document is kept.
	Set(ctx context.Context, path string, data map[string]interface{}, merge bool) error
	// Update is a merge write that fails with ErrNotFound instead of
	// creating the document.
	Update(ctx context.Context, path string, data map[string]interface{}) error
	Add(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	Delete(ctx context.Context, path string) error
	// Query returns the direct children of collection ordered by a dotted
	// field path. Documents without the field are left out.
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	// Subscribe delivers the current snapshot and then every change until
	// the returned func is called or ctx is done. The channel is closed then.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error)
}

type Query struct {
	OrderBy string
	Desc    bool
}

// Snapshot is one read of a document.
type Snapshot struct {
	Path   string
	ID     string
	Exists bool
	Data   map[string]interface{}
}

// DataTo decodes the document into v using its json tags.
func (s Snapshot) DataTo(v interface{}) error {
	if !s.Exists {
		return fmt.Errorf("%w: %s", ErrNotFound, s.Path)
	}
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return nil
}

// Doc joins path segments.
func Doc(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent collection and the id of a document path.
func Split(path string) (collection, id string, err error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

func validCollection(collection string) error {
	segs := strings.Split(strings.Trim(collection, "/"), "/")
	if len(segs)%2 != 1 {
		return fmt.Errorf("%w: collection %q", ErrInvalidPath, collection)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("%w: collection %q", ErrInvalidPath, collection)
		}
	}
	return nil
}
