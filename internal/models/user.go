// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local projection of an identity-provider account.
// Authentication itself is delegated; ExternalID links back to the provider
// subject and is the only authoritative tie to the external identity.
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ExternalID string         `gorm:"size:128;uniqueIndex;not null" json:"external_id"`
	Username   string         `gorm:"size:40;uniqueIndex;not null" json:"username"`
	Name       string         `gorm:"size:120" json:"name"`
	Bio        string         `json:"bio"`
	Avatar     string         `json:"avatar"`
	IsAdmin    bool           `gorm:"default:false" json:"is_admin"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Posts      []Post         `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
