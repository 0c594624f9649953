package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	emaildomain "mailsense-backend/internal/email/domain"
)

// SyncCursorRepository defines the interface for per-folder cursor state
type SyncCursorRepository interface {
	GetOrCreate(folder string) (*emaildomain.SyncCursor, error)
	// Advance moves the folder cursor forward to lastUID and bumps the
	// synced total. A lastUID at or below the current cursor is a no-op so
	// the cursor never moves backwards.
	Advance(folder string, lastUID uint32, added int) error
	List() ([]emaildomain.SyncCursor, error)
}

type syncCursorRepository struct {
	db *gorm.DB
}

func NewSyncCursorRepository(db *gorm.DB) SyncCursorRepository {
	return &syncCursorRepository{db: db}
}

func (r *syncCursorRepository) GetOrCreate(folder string) (*emaildomain.SyncCursor, error) {
	// The generated ID goes in Attrs, not the conditions, so an existing
	// folder row is found instead of shadowed by a never-matching id filter.
	var cursor emaildomain.SyncCursor
	err := r.db.Where(emaildomain.SyncCursor{Folder: folder}).
		Attrs(emaildomain.SyncCursor{ID: uuid.New().String()}).
		FirstOrCreate(&cursor).Error
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (r *syncCursorRepository) Advance(folder string, lastUID uint32, added int) error {
	cursor, err := r.GetOrCreate(folder)
	if err != nil {
		return err
	}
	if lastUID <= cursor.LastUID {
		return nil
	}

	now := time.Now().UTC()
	cursor.LastUID = lastUID
	cursor.LastSync = &now
	cursor.TotalSynced += added
	return r.db.Save(cursor).Error
}

func (r *syncCursorRepository) List() ([]emaildomain.SyncCursor, error) {
	var cursors []emaildomain.SyncCursor
	if err := r.db.Order("folder").Find(&cursors).Error; err != nil {
		return nil, err
	}
	return cursors, nil
}
