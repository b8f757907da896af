package models

import "time"

// StateModel is a row of the key/value state table
type StateModel struct {
	Key       string    `gorm:"column:key;type:varchar(64);primaryKey"`
	Value     string    `gorm:"column:value;type:varchar(256);not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StateModel) TableName() string {
	return "state"
}
