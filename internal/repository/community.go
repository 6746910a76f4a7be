package repository

import (
	"context"
	"errors"

	"chattersphere/internal/models"

	"gorm.io/gorm"
)

// CommunityCounts holds the derived display counters for a community.
type CommunityCounts struct {
	Members  int64
	Posts    int64
	Channels int64
}

// CommunityRepository defines the interface for community data operations
type CommunityRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Community, error)
	GetBySlug(ctx context.Context, slug string) (*models.Community, error)
	List(ctx context.Context, includePrivate bool, limit, offset int) ([]models.Community, error)
	CountBySlug(ctx context.Context, slug string) (int64, error)
	CreateWithDefaults(ctx context.Context, community *models.Community, creatorID uint) error
	Counts(ctx context.Context, communityID uint) (CommunityCounts, error)
	Channels(ctx context.Context, communityID uint) ([]models.Channel, error)
	CreateChannel(ctx context.Context, channel *models.Channel) error
}

// communityRepository implements CommunityRepository
type communityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db}
}

func (r *communityRepository) GetByID(ctx context.Context, id uint) (*models.Community, error) {
	var community models.Community
	if err := r.db.WithContext(ctx).Preload("Creator").First(&community, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Community", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &community, nil
}

func (r *communityRepository) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	var community models.Community
	if err := r.db.WithContext(ctx).Preload("Creator").Where("slug = ?", slug).First(&community).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Community", slug)
		}
		return nil, models.NewInternalError(err)
	}
	return &community, nil
}

func (r *communityRepository) List(ctx context.Context, includePrivate bool, limit, offset int) ([]models.Community, error) {
	var communities []models.Community
	q := readDB(r.db).WithContext(ctx).Preload("Creator").Order("name ASC")
	if !includePrivate {
		q = q.Where("is_private = ?", false)
	}
	if err := q.Limit(limit).Offset(offset).Find(&communities).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return communities, nil
}

func (r *communityRepository) CountBySlug(ctx context.Context, slug string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Community{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// CreateWithDefaults creates the community, the creator membership row, and the
// default "general" channel in a single transaction.
func (r *communityRepository) CreateWithDefaults(ctx context.Context, community *models.Community, creatorID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(community).Error; err != nil {
			return err
		}

		membership := models.CommunityMember{
			CommunityID: community.ID,
			UserID:      creatorID,
			Role:        models.CommunityRoleCreator,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		channel := models.Channel{
			CommunityID: community.ID,
			Name:        "general",
			CreatedBy:   creatorID,
		}
		return tx.Create(&channel).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *communityRepository) Counts(ctx context.Context, communityID uint) (CommunityCounts, error) {
	var counts CommunityCounts
	db := readDB(r.db).WithContext(ctx)

	if err := db.Model(&models.CommunityMember{}).
		Where("community_id = ?", communityID).
		Count(&counts.Members).Error; err != nil {
		return counts, models.NewInternalError(err)
	}
	if err := db.Model(&models.Post{}).
		Where("community_id = ?", communityID).
		Count(&counts.Posts).Error; err != nil {
		return counts, models.NewInternalError(err)
	}
	if err := db.Model(&models.Channel{}).
		Where("community_id = ?", communityID).
		Count(&counts.Channels).Error; err != nil {
		return counts, models.NewInternalError(err)
	}
	return counts, nil
}

func (r *communityRepository) Channels(ctx context.Context, communityID uint) ([]models.Channel, error) {
	var channels []models.Channel
	if err := readDB(r.db).WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("created_at ASC").
		Find(&channels).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return channels, nil
}

func (r *communityRepository) CreateChannel(ctx context.Context, channel *models.Channel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
