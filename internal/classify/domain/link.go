package domain

import "time"

// LinkType is the deterministic domain/path classification of a URL.
type LinkType string

const (
	LinkTypeArticle LinkType = "article"
	LinkTypeGithub  LinkType = "github"
	LinkTypeArxiv   LinkType = "arxiv"
	LinkTypeVideo   LinkType = "video"
	LinkTypeTool    LinkType = "tool"
	LinkTypeDocs    LinkType = "docs"
	LinkTypeOther   LinkType = "other"
)

// PipelineStatus is the extraction-adapter lifecycle of a link. It advances
// pending → queued → extracted (or skipped) and never reverts except by an
// explicit reset back to pending.
type PipelineStatus string

const (
	PipelinePending   PipelineStatus = "pending"
	PipelineQueued    PipelineStatus = "queued"
	PipelineExtracted PipelineStatus = "extracted"
	PipelineSkipped   PipelineStatus = "skipped"
)

// ValidPipelineStatus reports whether s is a known status value.
func ValidPipelineStatus(s PipelineStatus) bool {
	switch s {
	case PipelinePending, PipelineQueued, PipelineExtracted, PipelineSkipped:
		return true
	}
	return false
}

// CanTransitionPipeline reports whether from → to is a legal move: forward
// along the lifecycle, or an explicit reset to pending.
func CanTransitionPipeline(from, to PipelineStatus) bool {
	if to == PipelinePending {
		return true
	}
	switch from {
	case PipelinePending:
		return to == PipelineQueued || to == PipelineExtracted || to == PipelineSkipped
	case PipelineQueued:
		return to == PipelineExtracted || to == PipelineSkipped
	}
	return false
}

// ExtractedLink is one canonical URL found inside an email body. The URL is
// unique within its email after canonicalization.
type ExtractedLink struct {
	ID      string `json:"id" gorm:"primaryKey"`
	EmailID string `json:"email_id" gorm:"index;uniqueIndex:idx_email_url,priority:1;not null"`

	URL        string   `json:"url" gorm:"uniqueIndex:idx_email_url,priority:2;size:2048;not null"`
	AnchorText string   `json:"anchor_text" gorm:"type:text"`
	Domain     string   `json:"domain" gorm:"index;size:256"`
	LinkType   LinkType `json:"link_type" gorm:"size:32"`

	// RelevanceScore stays nil until the oracle scores the link; scoring is
	// asynchronous and never blocks link persistence.
	RelevanceScore *float64 `json:"relevance_score,omitempty" gorm:"index"`

	PipelineStatus PipelineStatus `json:"pipeline_status" gorm:"size:32;index;default:pending"`
	Extractor      string         `json:"extractor,omitempty" gorm:"size:64"`

	ExtractedAt time.Time  `json:"extracted_at"`
	QueuedAt    *time.Time `json:"queued_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (ExtractedLink) TableName() string {
	return "extracted_links"
}
