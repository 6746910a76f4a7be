package models

import "time"

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	NotificationTypeComment           NotificationType = "comment"
	NotificationTypeReply             NotificationType = "reply"
	NotificationTypeFollow            NotificationType = "follow"
	NotificationTypePostLike          NotificationType = "post_like"
	NotificationTypeCommentLike       NotificationType = "comment_like"
	NotificationTypeMention           NotificationType = "mention"
	NotificationTypeCommunityInvite   NotificationType = "community_invite"
	NotificationTypeCommunityJoin     NotificationType = "community_join"
	NotificationTypeCommunityRejected NotificationType = "community_rejected"
)

// Notification is a fire-and-forget record created as a side effect of another
// mutation. Only the recipient mutates it afterwards (read state); the entity
// that spawned it never references it again.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index" json:"recipient_id"`
	Recipient   *User            `gorm:"foreignKey:RecipientID" json:"-"`
	ActorID     *uint            `gorm:"index" json:"actor_id,omitempty"`
	Actor       *User            `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Type        NotificationType `gorm:"size:30;not null;index" json:"type"`
	Message     string           `gorm:"type:text;not null" json:"message"`
	CommunityID *uint            `gorm:"index" json:"community_id,omitempty"`
	PostID      *uint            `json:"post_id,omitempty"`
	CommentID   *uint            `json:"comment_id,omitempty"`
	IsRead      bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
