package domain

import "time"

// SyncCursor remembers where incremental sync left off for one folder.
// LastUID only moves forward, and only after the messages below it have been
// persisted, so a crash between fetch and advance is safe to retry.
type SyncCursor struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Folder      string     `json:"folder" gorm:"uniqueIndex;size:128;not null"`
	LastUID     uint32     `json:"last_uid" gorm:"default:0"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	TotalSynced int        `json:"total_synced" gorm:"default:0"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (SyncCursor) TableName() string {
	return "sync_cursors"
}
