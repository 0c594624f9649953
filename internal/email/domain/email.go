package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Address is one participant of an email: optional display name, required address.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// AddressList stores a to/cc list as a JSON column.
type AddressList []Address

// Value implements driver.Valuer
func (a AddressList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AddressList) Scan(value interface{}) error {
	if value == nil {
		*a = AddressList{}
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
		*a = AddressList{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// HeaderMap stores the retained raw headers as a JSON column.
type HeaderMap map[string]string

// Value implements driver.Valuer
func (h HeaderMap) Value() (driver.Value, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner
func (h *HeaderMap) Scan(value interface{}) error {
	if value == nil {
		*h = HeaderMap{}
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
		*h = HeaderMap{}
		return nil
	}
	return json.Unmarshal(bytes, h)
}

// Email is a synced mailbox message. MessageID is globally unique: re-syncing
// the same message upserts and never duplicates.
type Email struct {
	ID        string `json:"id" gorm:"primaryKey"`
	MessageID string `json:"message_id" gorm:"uniqueIndex;size:512;not null"`
	UID       uint32 `json:"uid" gorm:"index"`
	Folder    string `json:"folder" gorm:"index;size:128;default:INBOX"`

	FromAddress string      `json:"from_address" gorm:"index;size:256"`
	FromName    string      `json:"from_name" gorm:"size:256"`
	ToAddresses AddressList `json:"to_addresses" gorm:"type:text"`
	CcAddresses AddressList `json:"cc_addresses" gorm:"type:text"`
	ReplyTo     string      `json:"reply_to" gorm:"size:256"`

	Subject  string  `json:"subject" gorm:"type:text"`
	BodyText *string `json:"body_text,omitempty" gorm:"type:text"`
	BodyHTML *string `json:"body_html,omitempty" gorm:"type:text"`

	DateSent     *time.Time `json:"date_sent,omitempty" gorm:"index"`
	DateReceived *time.Time `json:"date_received,omitempty"`
	DateSynced   time.Time  `json:"date_synced"`

	IsRead         bool `json:"is_read"`
	IsStarred      bool `json:"is_starred"`
	HasAttachments bool `json:"has_attachments"`

	SizeBytes  int       `json:"size_bytes"`
	RawHeaders HeaderMap `json:"raw_headers" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Email) TableName() string {
	return "emails"
}
