package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	classifydomain "mailsense-backend/internal/classify/domain"
)

// SenderFilter narrows sender profile listing.
type SenderFilter struct {
	SenderType string
	SortBy     string // total_emails | relevance_score | last_seen
	Page       int
	PageSize   int
}

// SenderRepository defines the interface for sender profile storage
type SenderRepository interface {
	// GetOrCreate looks up a profile by address, creating an empty one when
	// the address has never been seen.
	GetOrCreate(address, displayName string) (*classifydomain.SenderProfile, error)
	GetByAddress(address string) (*classifydomain.SenderProfile, error)
	Save(profile *classifydomain.SenderProfile) error
	List(filter SenderFilter) ([]classifydomain.SenderProfile, int64, error)
	// Disengaged returns senders with at least minEmails whose relevance sits
	// below maxRelevance and who were last seen before cutoff.
	Disengaged(maxRelevance float64, minEmails int, cutoff time.Time) ([]classifydomain.SenderProfile, error)
}

type senderRepository struct {
	db *gorm.DB
}

func NewSenderRepository(db *gorm.DB) SenderRepository {
	return &senderRepository{db: db}
}

func (r *senderRepository) GetOrCreate(address, displayName string) (*classifydomain.SenderProfile, error) {
	// The dest must start zero-valued: a pre-filled primary key would leak
	// into the lookup conditions and miss the existing row. New-row defaults
	// ride along in Attrs instead.
	var profile classifydomain.SenderProfile
	err := r.db.Where(classifydomain.SenderProfile{EmailAddress: address}).
		Attrs(classifydomain.SenderProfile{
			ID:             uuid.New().String(),
			DisplayName:    displayName,
			SenderType:     classifydomain.SenderService,
			CategoryCounts: classifydomain.TopicCountMap{},
		}).
		FirstOrCreate(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *senderRepository) GetByAddress(address string) (*classifydomain.SenderProfile, error) {
	var profile classifydomain.SenderProfile
	err := r.db.Where("email_address = ?", address).First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *senderRepository) Save(profile *classifydomain.SenderProfile) error {
	return r.db.Save(profile).Error
}

func (r *senderRepository) List(filter SenderFilter) ([]classifydomain.SenderProfile, int64, error) {
	query := r.db.Model(&classifydomain.SenderProfile{})

	if filter.SenderType != "" {
		query = query.Where("sender_type = ?", filter.SenderType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "total_emails DESC"
	switch filter.SortBy {
	case "relevance_score":
		order = "relevance_score DESC"
	case "last_seen":
		order = "last_seen DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	var profiles []classifydomain.SenderProfile
	err := query.
		Order(order).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&profiles).Error
	if err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

func (r *senderRepository) Disengaged(maxRelevance float64, minEmails int, cutoff time.Time) ([]classifydomain.SenderProfile, error) {
	var profiles []classifydomain.SenderProfile
	err := r.db.
		Where("total_emails >= ? AND relevance_score < ? AND last_seen < ?", minEmails, maxRelevance, cutoff).
		Order("relevance_score ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
