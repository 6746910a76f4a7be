package repository

import (
	"context"
	"errors"

	"chattersphere/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipRepository defines the interface for community membership and
// join-request data operations.
type MembershipRepository interface {
	GetMembership(ctx context.Context, communityID, userID uint) (*models.CommunityMember, error)
	AddMember(ctx context.Context, communityID, userID uint, role models.CommunityRole) (bool, error)
	RemoveMember(ctx context.Context, communityID, userID uint) (bool, error)
	SetRole(ctx context.Context, communityID, userID uint, role models.CommunityRole) error
	MemberCount(ctx context.Context, communityID uint) (int64, error)
	ListMembers(ctx context.Context, communityID uint, limit, offset int) ([]models.CommunityMember, error)
	GetPendingRequest(ctx context.Context, communityID, userID uint) (*models.MembershipRequest, error)
	CreateRequest(ctx context.Context, request *models.MembershipRequest) error
	DeleteRequest(ctx context.Context, communityID, userID uint) (bool, error)
	ListPendingRequests(ctx context.Context, communityID uint) ([]models.MembershipRequest, error)
	ApproveRequest(ctx context.Context, communityID, userID uint) (bool, error)
}

// membershipRepository implements MembershipRepository
type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) GetMembership(ctx context.Context, communityID, userID uint) (*models.CommunityMember, error) {
	var membership models.CommunityMember
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // not a member
		}
		return nil, models.NewInternalError(err)
	}
	return &membership, nil
}

// AddMember inserts a membership row. Returns false when the row already
// existed; the composite primary key plus ON CONFLICT DO NOTHING makes the
// insert idempotent under concurrent joins.
func (r *membershipRepository) AddMember(ctx context.Context, communityID, userID uint, role models.CommunityRole) (bool, error) {
	membership := models.CommunityMember{
		CommunityID: communityID,
		UserID:      userID,
		Role:        role,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&membership)
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *membershipRepository) RemoveMember(ctx context.Context, communityID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&models.CommunityMember{})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *membershipRepository) SetRole(ctx context.Context, communityID, userID uint, role models.CommunityRole) error {
	result := r.db.WithContext(ctx).
		Model(&models.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Update("role", role)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Membership", userID)
	}
	return nil
}

func (r *membershipRepository) MemberCount(ctx context.Context, communityID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CommunityMember{}).
		Where("community_id = ?", communityID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *membershipRepository) ListMembers(ctx context.Context, communityID uint, limit, offset int) ([]models.CommunityMember, error) {
	var members []models.CommunityMember
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("community_id = ?", communityID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

func (r *membershipRepository) GetPendingRequest(ctx context.Context, communityID, userID uint) (*models.MembershipRequest, error) {
	var request models.MembershipRequest
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // no outstanding request
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

// CreateRequest inserts a pending join request. The unique (community, user)
// index plus ON CONFLICT DO NOTHING means a second join attempt reuses the
// existing request instead of creating a duplicate.
func (r *membershipRepository) CreateRequest(ctx context.Context, request *models.MembershipRequest) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(request).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *membershipRepository) DeleteRequest(ctx context.Context, communityID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&models.MembershipRequest{})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *membershipRepository) ListPendingRequests(ctx context.Context, communityID uint) ([]models.MembershipRequest, error) {
	var requests []models.MembershipRequest
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("community_id = ?", communityID).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

// ApproveRequest resolves a pending request into a membership row atomically.
// The request row is deleted first; zero rows affected means another moderator
// already resolved it, so the whole operation reports stale without touching
// the membership table. The membership insert is idempotent, so the combined
// effect is at-most-once even under concurrent approvals.
func (r *membershipRepository) ApproveRequest(ctx context.Context, communityID, userID uint) (bool, error) {
	approved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("community_id = ? AND user_id = ?", communityID, userID).
			Delete(&models.MembershipRequest{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil // stale: already approved or rejected
		}

		membership := models.CommunityMember{
			CommunityID: communityID,
			UserID:      userID,
			Role:        models.CommunityRoleMember,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&membership).Error; err != nil {
			return err
		}

		approved = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return approved, nil
}
