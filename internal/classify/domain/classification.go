package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Category is the closed classification enum.
type Category string

const (
	CategoryNewsletter    Category = "newsletter"
	CategoryTransactional Category = "transactional"
	CategoryNotification  Category = "notification"
	CategoryPersonal      Category = "personal"
	CategoryMarketing     Category = "marketing"
	CategoryActionable    Category = "actionable"
	CategoryNoise         Category = "noise"
)

// ValidCategory reports whether c is one of the closed enum values.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryNewsletter, CategoryTransactional, CategoryNotification,
		CategoryPersonal, CategoryMarketing, CategoryActionable, CategoryNoise:
		return true
	}
	return false
}

// TopicSet stores classification topics as a JSON column.
type TopicSet []string

// Value implements driver.Valuer
func (t TopicSet) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "[]", nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner
func (t *TopicSet) Scan(value interface{}) error {
	if value == nil {
		*t = TopicSet{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	if len(bytes) == 0 {
		*t = TopicSet{}
		return nil
	}
	return json.Unmarshal(bytes, t)
}

// Classification is the current oracle verdict for one email. There is at
// most one row per email: re-classification replaces the row in place.
type Classification struct {
	ID      string `json:"id" gorm:"primaryKey"`
	EmailID string `json:"email_id" gorm:"uniqueIndex;not null"`

	Category       Category `json:"category" gorm:"size:64;index;not null"`
	Confidence     float64  `json:"confidence"`
	Topics         TopicSet `json:"topics" gorm:"type:text"`
	RelevanceScore float64  `json:"relevance_score" gorm:"index"`
	Summary        string   `json:"summary" gorm:"type:text"`

	// ContentHash fingerprints subject + both bodies at classification time;
	// unchanged content is never resubmitted to the oracle.
	ContentHash string `json:"content_hash" gorm:"size:64;index"`
	ModelUsed   string `json:"model_used" gorm:"size:64"`

	ClassifiedAt time.Time `json:"classified_at"`
}

// TableName specifies the table name for GORM
func (Classification) TableName() string {
	return "classifications"
}
