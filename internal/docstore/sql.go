package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnold/habitgrid-api/internal/logger"
	"github.com/arnold/habitgrid-api/internal/models"
)

// SQL keeps documents as JSON rows through gorm. Subscriptions are served
// from an in-process hub; with a Bus attached, writes from other instances
// reach local subscribers too.
type SQL struct {
	db       *gorm.DB
	hub      *Hub
	bus      Bus
	instance string
	log      *logger.Logger

	// serializes write+publish so subscribers see changes in commit order
	mu sync.Mutex
}

func NewSQL(db *gorm.DB, log *logger.Logger) *SQL {
	return &SQL{
		db:       db,
		hub:      NewHub(),
		instance: uuid.NewString(),
		log:      logger.OrNop(log).With("service", "SQLDocStore"),
	}
}

// AttachBus publishes local writes on bus and forwards remote ones to local
// subscribers until ctx is done.
func (s *SQL) AttachBus(ctx context.Context, bus Bus) error {
	err := bus.StartForwarder(ctx, func(c Change) {
		if c.Origin == s.instance {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		snap, err := s.read(ctx, s.db, c.Path)
		if err != nil {
			s.log.Warn("refresh after remote change failed", "path", c.Path, "error", err)
			return
		}
		s.hub.Publish(snap)
	})
	if err != nil {
		return err
	}
	s.bus = bus
	return nil
}

func (s *SQL) Get(ctx context.Context, path string) (Snapshot, error) {
	if _, _, err := Split(path); err != nil {
		return Snapshot{}, err
	}
	return s.read(ctx, s.db, path)
}

func (s *SQL) Set(ctx context.Context, path string, data map[string]interface{}, mergeFields bool) error {
	return s.write(ctx, path, data, mergeFields, false)
}

func (s *SQL) Update(ctx context.Context, path string, data map[string]interface{}) error {
	return s.write(ctx, path, data, true, true)
}

func (s *SQL) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.write(ctx, Doc(collection, id), data, false, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQL) Delete(ctx context.Context, path string) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.WithContext(ctx).Where("path = ?", path).Delete(&models.Document{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.changed(ctx, missing(path))
	return nil
}

func (s *SQL) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	var docs []models.Document
	if err := s.db.WithContext(ctx).Where("collection = ?", collection).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		snap, err := toSnapshot(d)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return order(out, q), nil
}

func (s *SQL) Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	if _, _, err := Split(path); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.read(ctx, s.db, path)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Watch(ctx, snap)
	return ch, cancel, nil
}

func (s *SQL) write(ctx context.Context, path string, data map[string]interface{}, mergeFields, mustExist bool) error {
	collection, id, err := Split(path)
	if err != nil {
		return err
	}
	next, err := normalize(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var doc models.Document
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("path = ?", path).Take(&doc).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if mustExist {
				return fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			doc = models.Document{Path: path, Collection: collection, DocID: id}
		case err != nil:
			return err
		case mergeFields:
			current := map[string]interface{}{}
			if err := json.Unmarshal(doc.Data, &current); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			next = merge(current, next)
		}

		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		doc.Data = datatypes.JSON(raw)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			UpdateAll: true,
		}).Create(&doc).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("write %s: %w", path, err)
	}

	snap, err := toSnapshot(doc)
	if err != nil {
		return err
	}
	s.changed(ctx, snap)
	return nil
}

func (s *SQL) changed(ctx context.Context, snap Snapshot) {
	s.hub.Publish(snap)
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, Change{Origin: s.instance, Path: snap.Path}); err != nil {
		s.log.Warn("publish change failed", "path", snap.Path, "error", err)
	}
}

func (s *SQL) read(ctx context.Context, db *gorm.DB, path string) (Snapshot, error) {
	var doc models.Document
	err := db.WithContext(ctx).Where("path = ?", path).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return missing(path), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}
	return toSnapshot(doc)
}

func toSnapshot(d models.Document) (Snapshot, error) {
	data := map[string]interface{}{}
	if len(d.Data) > 0 {
		if err := json.Unmarshal(d.Data, &data); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", d.Path, err)
		}
	}
	return Snapshot{Path: d.Path, ID: d.DocID, Exists: true, Data: data}, nil
}
