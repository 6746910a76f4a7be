package seed

import (
	"errors"
	"fmt"

	"chattersphere/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInCommunity is a permanent system community.
type BuiltInCommunity struct {
	Name        string
	Slug        string
	Description string
}

// BuiltInCommunities defines the permanent system communities.
var BuiltInCommunities = []BuiltInCommunity{
	{Name: "The Commons", Slug: "commons", Description: "Core discussion for ChatterSphere."},
	{Name: "Announcements", Slug: "announcements", Description: "Platform news and updates."},
	{Name: "Help Desk", Slug: "help", Description: "Help and troubleshooting."},
	{Name: "Film Club", Slug: "movies", Description: "Film discussion and recommendations."},
	{Name: "Series Binge", Slug: "television", Description: "TV shows and series conversation."},
	{Name: "The Bookshelf", Slug: "books", Description: "Books, writing, and reading lists."},
	{Name: "Soundwaves", Slug: "music", Description: "Music discovery and discussion."},
	{Name: "Game On", Slug: "gaming", Description: "Gaming across all platforms."},
	{Name: "Dev Talk", Slug: "development", Description: "Software development discussions."},
	{Name: "Machine Minds", Slug: "ai", Description: "AI trends, tools, and research."},
	{Name: "The Gym Floor", Slug: "fitness", Description: "Fitness and training programs."},
	{Name: "Kitchen Table", Slug: "food", Description: "Food, cooking, and nutrition."},
}

// Communities seeds permanent built-in communities and their default channels.
func Communities(db *gorm.DB) error {
	for _, item := range BuiltInCommunities {
		err := db.Transaction(func(tx *gorm.DB) error {
			community := models.Community{
				Name:        item.Name,
				Slug:        item.Slug,
				Description: item.Description,
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "description", "updated_at"}),
			}).Create(&community).Error; err != nil {
				return err
			}

			if community.ID == 0 {
				if err := tx.Where("slug = ?", item.Slug).First(&community).Error; err != nil {
					return err
				}
			}

			var existing models.Channel
			queryErr := tx.Where("community_id = ?", community.ID).First(&existing).Error
			switch {
			case queryErr == nil:
				return nil
			case !errors.Is(queryErr, gorm.ErrRecordNotFound):
				return queryErr
			}

			channel := models.Channel{
				CommunityID: community.ID,
				Name:        "general",
				Description: "General discussion",
			}
			return tx.Create(&channel).Error
		})
		if err != nil {
			return fmt.Errorf("seed built-in community %s: %w", item.Slug, err)
		}
	}

	return nil
}
