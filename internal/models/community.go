package models

import "time"

// Community represents a discussion community namespace.
//
// Membership is not stored on the community itself: community_members rows are
// the single source of truth for who belongs and in what role, and the display
// counters (members, posts, channels) are derived with COUNT queries at read
// time so they can never drift from the underlying rows.
type Community struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:120;not null" json:"name"`
	Slug             string    `gorm:"size:24;not null;uniqueIndex" json:"slug"`
	Description      string    `gorm:"type:text" json:"description"`
	Image            string    `json:"image"`
	Banner           string    `json:"banner"`
	IsPrivate        bool      `gorm:"not null;default:false" json:"is_private"`
	RequiresApproval bool      `gorm:"not null;default:false" json:"requires_approval"`
	CreatorID        *uint     `json:"creator_id"`
	Creator          *User     `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Community) TableName() string {
	return "communities"
}
