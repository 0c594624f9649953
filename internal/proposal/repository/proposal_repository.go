package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	proposaldomain "mailsense-backend/internal/proposal/domain"
)

// ProposalFilter narrows proposal listing.
type ProposalFilter struct {
	Status   string
	Type     string
	Page     int
	PageSize int
}

// ProposalRepository defines the interface for proposal storage
type ProposalRepository interface {
	// Create stores a proposal with its frozen item list in one transaction.
	Create(p *proposaldomain.CleanupProposal) error
	GetByID(id string) (*proposaldomain.CleanupProposal, error)
	List(filter ProposalFilter) ([]proposaldomain.CleanupProposal, int64, error)
	// ListPendingByType returns pending proposals of one type, items loaded,
	// used for overlap suppression at generation time.
	ListPendingByType(t proposaldomain.ProposalType) ([]proposaldomain.CleanupProposal, error)
	SetStatus(id string, status proposaldomain.ProposalStatus, reviewed bool) error
	SetExecuted(id string, status proposaldomain.ProposalStatus) error
	UpdateItem(item *proposaldomain.ProposalItem) error
}

type proposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) Create(p *proposaldomain.CleanupProposal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	for i := range p.Items {
		if p.Items[i].ID == "" {
			p.Items[i].ID = uuid.New().String()
		}
		p.Items[i].ProposalID = p.ID
		if p.Items[i].Status == "" {
			p.Items[i].Status = proposaldomain.ItemPending
		}
	}
	p.AffectedCount = len(p.Items)
	return r.db.Create(p).Error
}

func (r *proposalRepository) GetByID(id string) (*proposaldomain.CleanupProposal, error) {
	var p proposaldomain.CleanupProposal
	err := r.db.Preload("Items").Where("id = ?", id).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *proposalRepository) List(filter ProposalFilter) ([]proposaldomain.CleanupProposal, int64, error) {
	query := r.db.Model(&proposaldomain.CleanupProposal{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
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
		pageSize = 20
	}

	var proposals []proposaldomain.CleanupProposal
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (r *proposalRepository) ListPendingByType(t proposaldomain.ProposalType) ([]proposaldomain.CleanupProposal, error) {
	var proposals []proposaldomain.CleanupProposal
	err := r.db.
		Preload("Items").
		Where("type = ? AND status = ?", t, proposaldomain.StatusPending).
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

func (r *proposalRepository) SetStatus(id string, status proposaldomain.ProposalStatus, reviewed bool) error {
	updates := map[string]interface{}{"status": status}
	if reviewed {
		updates["reviewed_at"] = time.Now().UTC()
	}
	return r.db.Model(&proposaldomain.CleanupProposal{}).Where("id = ?", id).Updates(updates).Error
}

func (r *proposalRepository) SetExecuted(id string, status proposaldomain.ProposalStatus) error {
	return r.db.Model(&proposaldomain.CleanupProposal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"executed_at": time.Now().UTC(),
	}).Error
}

func (r *proposalRepository) UpdateItem(item *proposaldomain.ProposalItem) error {
	return r.db.Save(item).Error
}
