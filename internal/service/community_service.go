package service

import (
	"context"
	"log/slog"
	"strings"

	"chattersphere/internal/middleware"
	"chattersphere/internal/models"
	"chattersphere/internal/repository"
	"chattersphere/internal/validation"
)

// CommunityService provides community lifecycle and read-projection logic.
type CommunityService struct {
	communityRepo repository.CommunityRepository
}

// NewCommunityService returns a new CommunityService.
func NewCommunityService(communityRepo repository.CommunityRepository) *CommunityService {
	return &CommunityService{communityRepo: communityRepo}
}

// CreateCommunityInput is the caller-supplied part of a new community.
type CreateCommunityInput struct {
	Name             string
	Slug             string
	Description      string
	Image            string
	Banner           string
	IsPrivate        bool
	RequiresApproval bool
}

// Create validates and creates a community. The creator becomes the first
// member (creator role) and a default "general" channel is created alongside.
func (s *CommunityService) Create(ctx context.Context, creatorID uint, input CreateCommunityInput) (*models.Community, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.TrimSpace(strings.ToLower(input.Slug))

	if input.Name == "" {
		return nil, models.NewValidationError("name is required")
	}
	if err := validation.ValidateCommunitySlug(input.Slug); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.communityRepo.CountBySlug(ctx, input.Slug)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, models.NewValidationError("slug is already in use")
	}

	community := &models.Community{
		Name:             input.Name,
		Slug:             input.Slug,
		Description:      strings.TrimSpace(input.Description),
		Image:            input.Image,
		Banner:           input.Banner,
		IsPrivate:        input.IsPrivate,
		RequiresApproval: input.RequiresApproval,
		CreatorID:        &creatorID,
	}
	if err := s.communityRepo.CreateWithDefaults(ctx, community, creatorID); err != nil {
		return nil, err
	}
	return s.communityRepo.GetByID(ctx, community.ID)
}

// GetByID returns the community and its derived counters. A counting failure
// degrades to zero counts instead of failing the read.
func (s *CommunityService) GetByID(ctx context.Context, id uint) (*models.Community, repository.CommunityCounts, error) {
	community, err := s.communityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repository.CommunityCounts{}, err
	}
	return community, s.counts(ctx, community.ID), nil
}

// GetBySlug returns the community and its derived counters by slug.
func (s *CommunityService) GetBySlug(ctx context.Context, slug string) (*models.Community, repository.CommunityCounts, error) {
	community, err := s.communityRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, repository.CommunityCounts{}, err
	}
	return community, s.counts(ctx, community.ID), nil
}

// List returns communities visible to the viewer. Private communities are
// hidden from anonymous browsing.
func (s *CommunityService) List(ctx context.Context, includePrivate bool, limit, offset int) ([]models.Community, error) {
	return s.communityRepo.List(ctx, includePrivate, limit, offset)
}

// Channels lists the channels of a community.
func (s *CommunityService) Channels(ctx context.Context, communityID uint) ([]models.Channel, error) {
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return nil, err
	}
	return s.communityRepo.Channels(ctx, communityID)
}

// CreateChannel adds a channel to a community. Authorization is the caller's
// concern; this only validates shape.
func (s *CommunityService) CreateChannel(ctx context.Context, communityID, creatorID uint, name, description string) (*models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("name is required")
	}
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return nil, err
	}

	channel := &models.Channel{
		CommunityID: communityID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   creatorID,
	}
	if err := s.communityRepo.CreateChannel(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *CommunityService) counts(ctx context.Context, communityID uint) repository.CommunityCounts {
	counts, err := s.communityRepo.Counts(ctx, communityID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "community counts unavailable",
			slog.Any("community_id", communityID), slog.String("error", err.Error()))
		return repository.CommunityCounts{}
	}
	return counts
}
