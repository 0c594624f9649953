package domain

import "time"

// SenderType is the inferred nature of a sender address.
type SenderType string

const (
	SenderNewsletter SenderType = "newsletter"
	SenderService    SenderType = "service"
	SenderPerson     SenderType = "person"
	SenderMarketing  SenderType = "marketing"
)

// SuggestedAction is what the aggregator recommends doing about a sender.
type SuggestedAction string

const (
	ActionKeep        SuggestedAction = "keep"
	ActionUnsubscribe SuggestedAction = "unsubscribe"
	ActionFilter      SuggestedAction = "filter"
	ActionArchive     SuggestedAction = "archive"
)

// SenderProfile is the rolling per-sender aggregate. One row per address,
// mutated only by the sender aggregator, never deleted.
type SenderProfile struct {
	ID           string `json:"id" gorm:"primaryKey"`
	EmailAddress string `json:"email_address" gorm:"uniqueIndex;size:256;not null"`
	DisplayName  string `json:"display_name" gorm:"size:256"`

	SenderType SenderType `json:"sender_type" gorm:"size:32;index"`

	TotalEmails    int `json:"total_emails" gorm:"default:0"`
	EmailsOpened   int `json:"emails_opened" gorm:"default:0"`
	EmailsActedOn  int `json:"emails_acted_on" gorm:"default:0"`
	LinksExtracted int `json:"links_extracted" gorm:"default:0"`

	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty" gorm:"index"`

	RelevanceScore  float64         `json:"relevance_score" gorm:"index"`
	SuggestedAction SuggestedAction `json:"suggested_action" gorm:"size:32"`

	// CategoryCounts tracks how many classified emails landed in each
	// category, the signal behind sender type inference.
	CategoryCounts TopicCountMap `json:"category_counts" gorm:"type:text"`

	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (SenderProfile) TableName() string {
	return "sender_profiles"
}
