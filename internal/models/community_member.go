package models

import "time"

// CommunityRole defines a member's role in a community.
type CommunityRole string

const (
	// CommunityRoleCreator is the community creator role. Immutable after creation.
	CommunityRoleCreator CommunityRole = "creator"
	// CommunityRoleModerator is the community moderator role.
	CommunityRoleModerator CommunityRole = "moderator"
	// CommunityRoleMember is the default member role.
	CommunityRoleMember CommunityRole = "member"
)

// CommunityMember maps users to communities and tracks role.
// The composite primary key doubles as the uniqueness guarantee: a user can
// hold at most one membership row per community.
type CommunityMember struct {
	CommunityID uint          `gorm:"primaryKey;autoIncrement:false" json:"community_id"`
	Community   *Community    `gorm:"foreignKey:CommunityID" json:"community,omitempty"`
	UserID      uint          `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User        *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role        CommunityRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (CommunityMember) TableName() string {
	return "community_members"
}
