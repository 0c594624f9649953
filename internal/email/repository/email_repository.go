package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	emaildomain "mailsense-backend/internal/email/domain"
)

// EmailFilter narrows List queries.
type EmailFilter struct {
	Folder      string
	FromAddress string
	Search      string
	IsRead      *bool
	Page        int
	PageSize    int
}

// EmailStats is the aggregate view behind GET /emails/stats.
type EmailStats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	ByFolder   map[string]int64 `json:"by_folder"`
	TopSenders []SenderCount    `json:"top_senders"`
}

type SenderCount struct {
	Address string `json:"address"`
	Count   int64  `json:"count"`
}

// EmailRepository defines the interface for email storage operations
type EmailRepository interface {
	// Upsert stores an email keyed by message_id. Returns true when the row
	// was inserted, false when an email with that message_id already existed.
	Upsert(email *emaildomain.Email) (bool, error)
	GetByID(id string) (*emaildomain.Email, error)
	GetByMessageID(messageID string) (*emaildomain.Email, error)
	List(filter EmailFilter) ([]emaildomain.Email, int64, error)
	Stats() (*EmailStats, error)
	SetRead(id string, read bool) error
	SetStarred(id string, starred bool) error
	SetFolder(id, folder string) error
}

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

func (r *emailRepository) Upsert(email *emaildomain.Email) (bool, error) {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	email.DateSynced = now

	// Re-delivery of an already stored message_id is expected and ignored.
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoNothing: true,
	}).Create(email)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *emailRepository) GetByID(id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("id = ?", id).First(&email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) GetByMessageID(messageID string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("message_id = ?", messageID).First(&email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) List(filter EmailFilter) ([]emaildomain.Email, int64, error) {
	query := r.db.Model(&emaildomain.Email{})

	if filter.Folder != "" {
		query = query.Where("folder = ?", filter.Folder)
	}
	if filter.FromAddress != "" {
		query = query.Where("from_address LIKE ?", "%"+filter.FromAddress+"%")
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("subject LIKE ? OR from_name LIKE ?", pattern, pattern)
	}
	if filter.IsRead != nil {
		query = query.Where("is_read = ?", *filter.IsRead)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	var emails []emaildomain.Email
	err := query.
		Order("date_sent DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&emails).Error
	if err != nil {
		return nil, 0, err
	}
	return emails, total, nil
}

func (r *emailRepository) Stats() (*EmailStats, error) {
	stats := &EmailStats{ByFolder: map[string]int64{}}

	if err := r.db.Model(&emaildomain.Email{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&emaildomain.Email{}).Where("is_read = ?", false).Count(&stats.Unread).Error; err != nil {
		return nil, err
	}

	type folderRow struct {
		Folder string
		Count  int64
	}
	var folders []folderRow
	err := r.db.Model(&emaildomain.Email{}).
		Select("folder, count(*) as count").
		Group("folder").
		Scan(&folders).Error
	if err != nil {
		return nil, err
	}
	for _, row := range folders {
		stats.ByFolder[row.Folder] = row.Count
	}

	err = r.db.Model(&emaildomain.Email{}).
		Select("from_address as address, count(*) as count").
		Where("from_address <> ''").
		Group("from_address").
		Order("count DESC").
		Limit(20).
		Scan(&stats.TopSenders).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *emailRepository) SetRead(id string, read bool) error {
	return r.db.Model(&emaildomain.Email{}).Where("id = ?", id).Update("is_read", read).Error
}

func (r *emailRepository) SetStarred(id string, starred bool) error {
	return r.db.Model(&emaildomain.Email{}).Where("id = ?", id).Update("is_starred", starred).Error
}

func (r *emailRepository) SetFolder(id, folder string) error {
	return r.db.Model(&emaildomain.Email{}).Where("id = ?", id).Update("folder", folder).Error
}
