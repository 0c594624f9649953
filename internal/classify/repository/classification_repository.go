package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	classifydomain "mailsense-backend/internal/classify/domain"
	emaildomain "mailsense-backend/internal/email/domain"
)

// ClassifyStats is the aggregate view behind GET /process/stats.
type ClassifyStats struct {
	TotalEmails  int64            `json:"total_emails"`
	Classified   int64            `json:"classified"`
	Unclassified int64            `json:"unclassified"`
	ByCategory   map[string]int64 `json:"by_category"`
}

// ClassificationRepository defines the interface for classification storage
type ClassificationRepository interface {
	// Replace installs the verdict for an email, overwriting any previous one.
	Replace(c *classifydomain.Classification) error
	GetByEmailID(emailID string) (*classifydomain.Classification, error)
	// Candidates returns emails with no classification yet, plus emails whose
	// stored content hash no longer matches currentHash computed by the caller.
	// Hash drift is detected lazily, so candidates are selected on absence
	// here and hash-checked by the processor.
	Candidates(limit int) ([]emaildomain.Email, error)
	Stats() (*ClassifyStats, error)
}

type classificationRepository struct {
	db *gorm.DB
}

func NewClassificationRepository(db *gorm.DB) ClassificationRepository {
	return &classificationRepository{db: db}
}

func (r *classificationRepository) Replace(c *classifydomain.Classification) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email_id = ?", c.EmailID).Delete(&classifydomain.Classification{}).Error; err != nil {
			return err
		}
		return tx.Create(c).Error
	})
}

func (r *classificationRepository) GetByEmailID(emailID string) (*classifydomain.Classification, error) {
	var c classifydomain.Classification
	err := r.db.Where("email_id = ?", emailID).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *classificationRepository) Candidates(limit int) ([]emaildomain.Email, error) {
	if limit < 1 {
		limit = 100
	}
	var emails []emaildomain.Email
	err := r.db.
		Where("id NOT IN (?)", r.db.Model(&classifydomain.Classification{}).Select("email_id")).
		Order("date_synced ASC").
		Limit(limit).
		Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *classificationRepository) Stats() (*ClassifyStats, error) {
	stats := &ClassifyStats{ByCategory: map[string]int64{}}

	if err := r.db.Model(&emaildomain.Email{}).Count(&stats.TotalEmails).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&classifydomain.Classification{}).Count(&stats.Classified).Error; err != nil {
		return nil, err
	}
	stats.Unclassified = stats.TotalEmails - stats.Classified

	type categoryRow struct {
		Category string
		Count    int64
	}
	var rows []categoryRow
	err := r.db.Model(&classifydomain.Classification{}).
		Select("category, count(*) as count").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByCategory[row.Category] = row.Count
	}
	return stats, nil
}
