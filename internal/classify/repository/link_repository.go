package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	classifydomain "mailsense-backend/internal/classify/domain"
)

// LinkFilter narrows link listing.
type LinkFilter struct {
	EmailID      string
	Status       string
	LinkType     string
	MinRelevance *float64
	Page         int
	PageSize     int
}

// PipelineStats summarizes the extraction pipeline.
type PipelineStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	ByType   map[string]int64 `json:"by_type"`
}

// LinkRepository defines the interface for extracted link storage
type LinkRepository interface {
	// CreateBatch inserts links, silently dropping any (email_id, url) pair
	// already stored. Returns how many rows were actually inserted.
	CreateBatch(links []classifydomain.ExtractedLink) (int, error)
	GetByID(id string) (*classifydomain.ExtractedLink, error)
	List(filter LinkFilter) ([]classifydomain.ExtractedLink, int64, error)
	ListByEmail(emailID string) ([]classifydomain.ExtractedLink, error)
	// SetScore records the oracle's relevance verdict for one link.
	SetScore(id string, score float64) error
	// Transition moves a link to status, stamping queued_at/completed_at as
	// appropriate. Callers check CanTransitionPipeline first.
	Transition(id string, status classifydomain.PipelineStatus, extractor string) error
	// PendingAbove returns pending links whose relevance is at or above floor,
	// ready to be queued for extraction.
	PendingAbove(floor float64, limit int) ([]classifydomain.ExtractedLink, error)
	Stats() (*PipelineStats, error)
}

type linkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) CreateBatch(links []classifydomain.ExtractedLink) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for i := range links {
		if links[i].ID == "" {
			links[i].ID = uuid.New().String()
		}
		if links[i].ExtractedAt.IsZero() {
			links[i].ExtractedAt = now
		}
		if links[i].PipelineStatus == "" {
			links[i].PipelineStatus = classifydomain.PipelinePending
		}
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email_id"}, {Name: "url"}},
		DoNothing: true,
	}).Create(&links)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *linkRepository) GetByID(id string) (*classifydomain.ExtractedLink, error) {
	var link classifydomain.ExtractedLink
	err := r.db.Where("id = ?", id).First(&link).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) List(filter LinkFilter) ([]classifydomain.ExtractedLink, int64, error) {
	query := r.db.Model(&classifydomain.ExtractedLink{})

	if filter.EmailID != "" {
		query = query.Where("email_id = ?", filter.EmailID)
	}
	if filter.Status != "" {
		query = query.Where("pipeline_status = ?", filter.Status)
	}
	if filter.LinkType != "" {
		query = query.Where("link_type = ?", filter.LinkType)
	}
	if filter.MinRelevance != nil {
		query = query.Where("relevance_score >= ?", *filter.MinRelevance)
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

	var links []classifydomain.ExtractedLink
	err := query.
		Order("extracted_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&links).Error
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (r *linkRepository) ListByEmail(emailID string) ([]classifydomain.ExtractedLink, error) {
	var links []classifydomain.ExtractedLink
	err := r.db.Where("email_id = ?", emailID).Order("extracted_at ASC").Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *linkRepository) SetScore(id string, score float64) error {
	return r.db.Model(&classifydomain.ExtractedLink{}).
		Where("id = ?", id).
		Update("relevance_score", score).Error
}

func (r *linkRepository) Transition(id string, status classifydomain.PipelineStatus, extractor string) error {
	updates := map[string]interface{}{"pipeline_status": status}
	now := time.Now().UTC()
	switch status {
	case classifydomain.PipelineQueued:
		updates["queued_at"] = now
	case classifydomain.PipelineExtracted, classifydomain.PipelineSkipped:
		updates["completed_at"] = now
	case classifydomain.PipelinePending:
		updates["queued_at"] = nil
		updates["completed_at"] = nil
	}
	if extractor != "" {
		updates["extractor"] = extractor
	}
	return r.db.Model(&classifydomain.ExtractedLink{}).Where("id = ?", id).Updates(updates).Error
}

func (r *linkRepository) PendingAbove(floor float64, limit int) ([]classifydomain.ExtractedLink, error) {
	if limit < 1 {
		limit = 100
	}
	var links []classifydomain.ExtractedLink
	err := r.db.
		Where("pipeline_status = ? AND relevance_score >= ?", classifydomain.PipelinePending, floor).
		Order("relevance_score DESC").
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *linkRepository) Stats() (*PipelineStats, error) {
	stats := &PipelineStats{ByStatus: map[string]int64{}, ByType: map[string]int64{}}

	if err := r.db.Model(&classifydomain.ExtractedLink{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	type kv struct {
		Key   string
		Count int64
	}
	var byStatus []kv
	err := r.db.Model(&classifydomain.ExtractedLink{}).
		Select("pipeline_status as key, count(*) as count").
		Group("pipeline_status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Key] = row.Count
	}

	var byType []kv
	err = r.db.Model(&classifydomain.ExtractedLink{}).
		Select("link_type as key, count(*) as count").
		Group("link_type").
		Scan(&byType).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byType {
		stats.ByType[row.Key] = row.Count
	}
	return stats, nil
}
