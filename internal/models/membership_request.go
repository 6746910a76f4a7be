package models

import "time"

// MembershipRequest is a pending request to join an approval-gated community.
// A unique index on (community_id, user_id) enforces at most one outstanding
// request per pair; approval and rejection both remove the row.
type MembershipRequest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CommunityID uint       `gorm:"not null;uniqueIndex:idx_membership_request_pair" json:"community_id"`
	Community   *Community `gorm:"foreignKey:CommunityID" json:"community,omitempty"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_membership_request_pair" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Message     string     `gorm:"type:text" json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (MembershipRequest) TableName() string {
	return "membership_requests"
}
