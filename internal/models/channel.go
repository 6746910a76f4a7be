package models

import "time"

// Channel is a named discussion room inside a community. Every community gets
// a default "general" channel at creation time.
type Channel struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CommunityID uint       `gorm:"not null;index" json:"community_id"`
	Community   *Community `gorm:"foreignKey:CommunityID" json:"community,omitempty"`
	Name        string     `gorm:"size:60;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	CreatedBy   uint       `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Channel) TableName() string {
	return "channels"
}
