package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ProposalType names the cleanup rule that produced a proposal.
type ProposalType string

const (
	ProposalUnsubscribe  ProposalType = "unsubscribe"
	ProposalArchive      ProposalType = "archive"
	ProposalCategorize   ProposalType = "categorize"
	ProposalExtractLinks ProposalType = "extract_links"
)

// ProposalStatus is the review lifecycle of a proposal. Only pending
// proposals can be reviewed; execution outcomes are terminal except that a
// partial proposal may be executed again to retry its failed items.
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusApproved ProposalStatus = "approved"
	StatusRejected ProposalStatus = "rejected"
	StatusExecuted ProposalStatus = "executed"
	StatusPartial  ProposalStatus = "partial"
)

// CanTransition reports whether a proposal may move from one status to
// another.
func CanTransition(from, to ProposalStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusExecuted || to == StatusPartial
	case StatusPartial:
		return to == StatusExecuted || to == StatusPartial
	}
	return false
}

// ItemStatus tracks one affected record through execution.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemDone    ItemStatus = "done"
	ItemFailed  ItemStatus = "failed"
)

// ItemAction names what executing an item will do to its record.
type ItemAction string

const (
	ItemActionArchive      ItemAction = "archive"
	ItemActionQueueExtract ItemAction = "queue_extract"
)

// Criteria records the selection that produced a proposal, frozen at
// generation time. Stored as a JSON column.
type Criteria struct {
	SenderAddress string   `json:"sender_address,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	OlderThanDays int      `json:"older_than_days,omitempty"`
	MinRelevance  float64  `json:"min_relevance,omitempty"`
	MaxRelevance  float64  `json:"max_relevance,omitempty"`
}

// Value implements driver.Valuer
func (c Criteria) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *Criteria) Scan(value interface{}) error {
	if value == nil {
		*c = Criteria{}
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
		*c = Criteria{}
		return nil
	}
	return json.Unmarshal(bytes, c)
}

// CleanupProposal is a reviewable batch of mailbox actions. The item list is
// frozen at generation time; emails arriving later never join an existing
// proposal.
type CleanupProposal struct {
	ID     string         `json:"id" gorm:"primaryKey"`
	Type   ProposalType   `json:"type" gorm:"size:32;index;not null"`
	Status ProposalStatus `json:"status" gorm:"size:32;index;default:pending"`

	Title  string `json:"title" gorm:"size:512"`
	Reason string `json:"reason" gorm:"type:text"`

	Criteria      Criteria `json:"criteria" gorm:"type:text"`
	AffectedCount int      `json:"affected_count"`

	Items []ProposalItem `json:"items,omitempty" gorm:"foreignKey:ProposalID"`

	CreatedAt  time.Time  `json:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (CleanupProposal) TableName() string {
	return "cleanup_proposals"
}

// ProposalItem is one concrete action inside a proposal.
type ProposalItem struct {
	ID         string `json:"id" gorm:"primaryKey"`
	ProposalID string `json:"proposal_id" gorm:"index;not null"`

	// Exactly one of EmailID and LinkID is set, depending on proposal type.
	EmailID string `json:"email_id,omitempty" gorm:"index"`
	LinkID  string `json:"link_id,omitempty" gorm:"index"`
	// SenderID links back to the profile that put the item here, when a
	// sender rule produced it.
	SenderID string `json:"sender_id,omitempty" gorm:"index"`

	Action ItemAction `json:"action" gorm:"size:32"`
	Reason string     `json:"reason,omitempty" gorm:"type:text"`

	Status ItemStatus `json:"status" gorm:"size:32;default:pending"`
	Error  string     `json:"error,omitempty" gorm:"type:text"`

	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (ProposalItem) TableName() string {
	return "proposal_items"
}
