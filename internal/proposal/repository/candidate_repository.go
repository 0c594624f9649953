package repository

import (
	"time"

	"gorm.io/gorm"

	emaildomain "mailsense-backend/internal/email/domain"
)

// CandidateRepository runs the read-only selection queries behind proposal
// generation.
type CandidateRepository interface {
	// EmailsBySender returns all of a sender's unopened emails outside
	// excludeFolder. A limit below 1 means unbounded.
	EmailsBySender(address, excludeFolder string, limit int) ([]emaildomain.Email, error)
	// ArchivableEmails returns emails classified into one of categories,
	// sent before cutoff and not already in excludeFolder. A limit below 1
	// means unbounded.
	ArchivableEmails(categories []string, cutoff time.Time, excludeFolder string, limit int) ([]emaildomain.Email, error)
}

type candidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) CandidateRepository {
	return &candidateRepository{db: db}
}

func (r *candidateRepository) EmailsBySender(address, excludeFolder string, limit int) ([]emaildomain.Email, error) {
	query := r.db.
		Where("from_address = ? AND is_read = ? AND folder <> ?", address, false, excludeFolder).
		Order("date_sent ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var emails []emaildomain.Email
	if err := query.Find(&emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *candidateRepository) ArchivableEmails(categories []string, cutoff time.Time, excludeFolder string, limit int) ([]emaildomain.Email, error) {
	query := r.db.
		Joins("JOIN classifications ON classifications.email_id = emails.id").
		Where("classifications.category IN ?", categories).
		Where("emails.date_sent < ? AND emails.folder <> ?", cutoff, excludeFolder).
		Where("emails.is_starred = ?", false).
		Order("emails.date_sent ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var emails []emaildomain.Email
	if err := query.Find(&emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}
