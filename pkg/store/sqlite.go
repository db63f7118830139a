package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/dmitrymomot/torrentbridge/pkg/broadcast"
)

// kvEntry is one stored key. The table is named <prefix>_kv_entries.
type kvEntry struct {
	Key       string `gorm:"column:entry_key;primaryKey"`
	Value     []byte `gorm:"column:entry_value;not null"`
	UpdatedAt time.Time
}

// SQLiteStore persists values in a SQLite database through gorm.
// Change notifications are local to the process that performed the write.
type SQLiteStore struct {
	db *gorm.DB
	// mu serialises writers of this process so that each change set is
	// computed against the state it replaced.
	mu     sync.Mutex
	feed   feed
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at dsn and migrates the
// entry table. Use "file::memory:" for a throwaway database.
func OpenSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	o := applyOptions(opts)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         newGormLogger(o.logger),
		NamingStrategy: schema.NamingStrategy{TablePrefix: o.prefix + "_"},
	})
	if err != nil {
		return nil, errors.Join(ErrOpenDatabase, err)
	}

	// A single connection keeps in-memory databases alive and avoids
	// SQLITE_BUSY between this process's own writers.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, errors.Join(ErrMigrate, err)
	}

	return &SQLiteStore{db: db, feed: newFeed(o.bufferSize)}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, keys ...string) (Values, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	q := s.db.WithContext(ctx)
	if len(keys) > 0 {
		q = q.Where("entry_key IN ?", keys)
	}

	var rows []kvEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeValues(entriesToMap(rows)), nil
}

func (s *SQLiteStore) Update(ctx context.Context, p Patch) error {
	if p.empty() {
		return nil
	}
	ep, err := p.encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var prev map[string][]byte
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []kvEntry
		if err := tx.Where("entry_key IN ?", ep.keys()).Find(&rows).Error; err != nil {
			return err
		}
		prev = entriesToMap(rows)

		if len(ep.set) > 0 {
			now := time.Now()
			upserts := make([]kvEntry, 0, len(ep.set))
			for k, v := range ep.set {
				upserts = append(upserts, kvEntry{Key: k, Value: v, UpdatedAt: now})
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "entry_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
			}).Create(&upserts).Error; err != nil {
				return err
			}
		}

		if len(ep.remove) > 0 {
			if err := tx.Where("entry_key IN ?", ep.remove).Delete(&kvEntry{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.feed.publish(ctx, ep.changes(prev))
	return nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, keys ...string) broadcast.Subscriber[Changes] {
	return s.feed.subscribe(ctx, keys)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ferr := s.feed.close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Join(ferr, err)
	}
	return errors.Join(ferr, sqlDB.Close())
}

func (s *SQLiteStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func entriesToMap(rows []kvEntry) map[string][]byte {
	out := make(map[string][]byte, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out
}
