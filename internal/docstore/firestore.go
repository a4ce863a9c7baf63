package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arnold/habitgrid-api/internal/logger"
)

// Firestore is the Cloud Firestore backed store. Paths map one to one onto
// Firestore document paths.
type Firestore struct {
	client *firestore.Client
	log    *logger.Logger
}

func NewFirestore(client *firestore.Client, log *logger.Logger) *Firestore {
	return &Firestore{client: client, log: logger.OrNop(log).With("service", "FirestoreDocStore")}
}

func (f *Firestore) Get(ctx context.Context, path string) (Snapshot, error) {
	ref, err := f.doc(path)
	if err != nil {
		return Snapshot{}, err
	}
	ds, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return missing(path), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get %s: %w", path, err)
	}
	return fromFirestore(path, ds), nil
}

func (f *Firestore) Set(ctx context.Context, path string, data map[string]interface{}, mergeFields bool) error {
	ref, err := f.doc(path)
	if err != nil {
		return err
	}
	if mergeFields {
		_, err = ref.Set(ctx, data, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, path string, data map[string]interface{}) error {
	ref, err := f.doc(path)
	if err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	_, err = ref.Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (f *Firestore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	ref, _, err := f.client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (f *Firestore) Delete(ctx context.Context, path string) error {
	ref, err := f.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (f *Firestore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	query := f.client.Collection(collection).Query
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}

	it := query.Documents(ctx)
	defer it.Stop()

	var out []Snapshot
	for {
		ds, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		out = append(out, fromFirestore(Doc(collection, ds.Ref.ID), ds))
	}
	return out, nil
}

func (f *Firestore) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	ref, err := f.doc(path)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	it := ref.Snapshots(ctx)
	ch := make(chan Snapshot, watchBuffer)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			ds, err := it.Next()
			if err != nil {
				if c := status.Code(err); c != codes.Canceled && ctx.Err() == nil {
					f.log.Warn("snapshot listener stopped", "path", path, "code", c.String(), "error", err)
				}
				return
			}
			snap := missing(path)
			if ds.Exists() {
				snap = fromFirestore(path, ds)
			}
			select {
			case ch <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}

func (f *Firestore) doc(path string) (*firestore.DocumentRef, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	ref := f.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return ref, nil
}

func fromFirestore(path string, ds *firestore.DocumentSnapshot) Snapshot {
	return Snapshot{Path: path, ID: ds.Ref.ID, Exists: true, Data: ds.Data()}
}
