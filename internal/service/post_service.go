package service

import (
	"context"
	"strings"

	"chattersphere/internal/models"
	"chattersphere/internal/notifications"
	"chattersphere/internal/repository"
)

// PostService provides post and comment business logic inside communities.
type PostService struct {
	postRepo       repository.PostRepository
	membershipRepo repository.MembershipRepository
	communityRepo  repository.CommunityRepository
	events         notifications.Publisher
}

// NewPostService returns a new PostService.
func NewPostService(
	postRepo repository.PostRepository,
	membershipRepo repository.MembershipRepository,
	communityRepo repository.CommunityRepository,
	events notifications.Publisher,
) *PostService {
	return &PostService{
		postRepo:       postRepo,
		membershipRepo: membershipRepo,
		communityRepo:  communityRepo,
		events:         events,
	}
}

// CreateInCommunity creates a post inside a community. Members only.
func (s *PostService) CreateInCommunity(ctx context.Context, communityID, userID uint, title, content, imageURL string) (*models.Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, models.NewValidationError("title and content are required")
	}

	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return nil, err
	}
	membership, err := s.membershipRepo.GetMembership(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, models.NewForbiddenError("Only members can post in this community")
	}

	post := &models.Post{
		Title:       title,
		Content:     content,
		ImageURL:    imageURL,
		UserID:      userID,
		CommunityID: &communityID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

// ListByCommunity lists a community's posts, newest first. Private communities
// are readable by members only; the handler resolves the viewer first.
func (s *PostService) ListByCommunity(ctx context.Context, communityID, viewerID uint, limit, offset int) ([]models.Post, error) {
	community, err := s.communityRepo.GetByID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if community.IsPrivate {
		membership, err := s.membershipRepo.GetMembership(ctx, communityID, viewerID)
		if err != nil {
			return nil, err
		}
		if membership == nil {
			return nil, models.NewForbiddenError("This community is private")
		}
	}
	return s.postRepo.ListByCommunity(ctx, communityID, limit, offset)
}

// CreateComment adds a comment to a post and notifies the post author.
func (s *PostService) CreateComment(ctx context.Context, postID, userID uint, content string, parentID *uint) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("content is required")
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content:  content,
		UserID:   userID,
		PostID:   postID,
		ParentID: parentID,
	}
	if err := s.postRepo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, notifications.CommentCreated{
		PostID:       post.ID,
		CommentID:    comment.ID,
		PostAuthorID: post.UserID,
		ActorID:      userID,
		PostTitle:    post.Title,
	})
	return comment, nil
}

// ListComments lists a post's comments, oldest first.
func (s *PostService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.postRepo.ListComments(ctx, postID, limit, offset)
}
