package audit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"graph-db-migrater/sdk/errs"
)

// Store reads and writes migration records.
type Store struct {
	db *gorm.DB
}

// Open connects to the audit database and ensures the schema exists.
func Open(dsn string, debug bool) (*Store, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, errs.AuditUnavailable(err)
	}
	if err := db.AutoMigrate(&Migration{}, &Schema{}, &Table{}, &Field{}); err != nil {
		return nil, errs.AuditUnavailable(err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing gorm handle. Used by tests.
func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Save writes the whole migration tree in one transaction, linking it
// to the most recent migration of the same db_source.
func (s *Store) Save(ctx context.Context, m *Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := latestFor(tx, m.DBSource)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if last != nil {
			m.ParentID = &last.ID
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return errs.AuditUnavailable(fmt.Errorf("save migration %s: %w", m.GUID, err))
	}
	return nil
}

// ByGUID loads a migration with its full schema/table/field tree.
func (s *Store) ByGUID(ctx context.Context, guid string) (*Migration, error) {
	var m Migration
	err := s.eager(ctx).Where("guid = ?", guid).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", errs.ErrMigrationNotFound, guid)
	}
	if err != nil {
		return nil, errs.AuditUnavailable(err)
	}
	return &m, nil
}

// Latest loads the most recent migration with its full tree.
func (s *Store) Latest(ctx context.Context) (*Migration, error) {
	var m Migration
	err := s.eager(ctx).Order("created_at DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrMigrationNotFound
	}
	if err != nil {
		return nil, errs.AuditUnavailable(err)
	}
	return &m, nil
}

// LatestFor loads the most recent migration of one db_source with its
// full tree.
func (s *Store) LatestFor(ctx context.Context, dbSource string) (*Migration, error) {
	var m Migration
	err := s.eager(ctx).Where("db_source = ?", dbSource).Order("created_at DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrMigrationNotFound
	}
	if err != nil {
		return nil, errs.AuditUnavailable(err)
	}
	return &m, nil
}

// eager preloads the full tree to avoid lazy-load round-trips on the
// apply path.
func (s *Store) eager(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Schemas").
		Preload("Schemas.Tables").
		Preload("Schemas.Tables.Fields")
}

func latestFor(tx *gorm.DB, dbSource string) (*Migration, error) {
	var m Migration
	err := tx.Where("db_source = ?", dbSource).Order("created_at DESC").First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
