package domain

import (
	"database/sql/driver"
	"encoding/json"
)

// TopicCountMap stores per-category counters as a JSON column.
type TopicCountMap map[string]int

// Value implements driver.Valuer
func (m TopicCountMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *TopicCountMap) Scan(value interface{}) error {
	if value == nil {
		*m = TopicCountMap{}
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
		*m = TopicCountMap{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}
