// Package service contains business logic for the application's domain operations.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"chattersphere/internal/middleware"
	"chattersphere/internal/models"
	"chattersphere/internal/notifications"
	"chattersphere/internal/repository"
)

// MembershipAction is the outcome of a join/leave toggle.
type MembershipAction string

const (
	// MembershipActionJoin means the caller became a member.
	MembershipActionJoin MembershipAction = "join"
	// MembershipActionLeave means the caller's membership was removed.
	MembershipActionLeave MembershipAction = "leave"
	// MembershipActionRequest means a pending join request was created or reused.
	MembershipActionRequest MembershipAction = "request"
)

// MembershipStatus is the viewer-relative relationship to a community.
type MembershipStatus struct {
	IsMember    bool   `json:"is_member"`
	IsModerator bool   `json:"is_moderator"`
	IsCreator   bool   `json:"is_creator"`
	Status      string `json:"status"` // none | pending | member
}

// ToggleResult is the result of a join/leave toggle.
type ToggleResult struct {
	Action      MembershipAction `json:"action"`
	IsMember    bool             `json:"is_member"`
	MemberCount int64            `json:"member_count"`
}

// MembershipService provides community membership and moderation business logic.
type MembershipService struct {
	membershipRepo repository.MembershipRepository
	communityRepo  repository.CommunityRepository
	userRepo       repository.UserRepository
	events         notifications.Publisher
}

// NewMembershipService returns a new MembershipService.
func NewMembershipService(
	membershipRepo repository.MembershipRepository,
	communityRepo repository.CommunityRepository,
	userRepo repository.UserRepository,
	events notifications.Publisher,
) *MembershipService {
	return &MembershipService{
		membershipRepo: membershipRepo,
		communityRepo:  communityRepo,
		userRepo:       userRepo,
		events:         events,
	}
}

// Status computes the viewer's relationship to a community. An anonymous
// viewer (viewerID 0) always resolves to all-false. Lookup failures degrade to
// the anonymous answer rather than failing the surrounding read: viewer flags
// are decoration on the projection, not its substance.
func (s *MembershipService) Status(ctx context.Context, communityID, viewerID uint) MembershipStatus {
	status := MembershipStatus{Status: "none"}
	if viewerID == 0 {
		return status
	}

	membership, err := s.membershipRepo.GetMembership(ctx, communityID, viewerID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "membership status lookup failed",
			slog.Any("community_id", communityID), slog.String("error", err.Error()))
		return status
	}

	if membership != nil {
		status.IsMember = true
		status.Status = "member"
		switch membership.Role {
		case models.CommunityRoleCreator:
			status.IsCreator = true
			status.IsModerator = true
		case models.CommunityRoleModerator:
			status.IsModerator = true
		}
		return status
	}

	request, err := s.membershipRepo.GetPendingRequest(ctx, communityID, viewerID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "pending request lookup failed",
			slog.Any("community_id", communityID), slog.String("error", err.Error()))
		return status
	}
	if request != nil {
		status.Status = "pending"
	}
	return status
}

// Toggle joins or leaves a community for the given user, honoring approval
// gating. The same endpoint serves both directions, so the current membership
// row decides which way the toggle goes.
func (s *MembershipService) Toggle(ctx context.Context, communityID, userID uint) (*ToggleResult, error) {
	community, err := s.communityRepo.GetByID(ctx, communityID)
	if err != nil {
		return nil, err
	}

	membership, err := s.membershipRepo.GetMembership(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}

	if membership != nil {
		// Leaving removes the whole membership row, so a moderator who leaves
		// stops being a moderator as well.
		if membership.Role == models.CommunityRoleCreator {
			return nil, models.NewValidationError("The creator cannot leave their own community")
		}
		if _, err := s.membershipRepo.RemoveMember(ctx, communityID, userID); err != nil {
			return nil, err
		}
		count, err := s.membershipRepo.MemberCount(ctx, communityID)
		if err != nil {
			return nil, err
		}
		return &ToggleResult{Action: MembershipActionLeave, IsMember: false, MemberCount: count}, nil
	}

	if community.RequiresApproval {
		// Create-or-reuse: the unique (community, user) index makes a second
		// join attempt a no-op instead of a duplicate request.
		request := &models.MembershipRequest{CommunityID: communityID, UserID: userID}
		if err := s.membershipRepo.CreateRequest(ctx, request); err != nil {
			return nil, err
		}
		return &ToggleResult{Action: MembershipActionRequest, IsMember: false}, nil
	}

	if _, err := s.membershipRepo.AddMember(ctx, communityID, userID, models.CommunityRoleMember); err != nil {
		return nil, err
	}
	count, err := s.membershipRepo.MemberCount(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return &ToggleResult{Action: MembershipActionJoin, IsMember: true, MemberCount: count}, nil
}

// CanModerate reports whether the user may moderate the community
// (creator or moderator role, or a platform admin). The community is resolved
// first so an unknown ID surfaces as NOT_FOUND rather than a permission error.
func (s *MembershipService) CanModerate(ctx context.Context, communityID, userID uint) (bool, error) {
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return false, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.IsAdmin {
		return true, nil
	}

	membership, err := s.membershipRepo.GetMembership(ctx, communityID, userID)
	if err != nil {
		return false, err
	}
	if membership == nil {
		return false, nil
	}
	return membership.Role == models.CommunityRoleCreator || membership.Role == models.CommunityRoleModerator, nil
}

// Approve resolves a pending join request into a membership. Safe under
// concurrent approvals: the request delete decides the winner, so the count
// and the membership row move at most once.
func (s *MembershipService) Approve(ctx context.Context, communityID, targetUserID, actorID uint) error {
	community, err := s.communityRepo.GetByID(ctx, communityID)
	if err != nil {
		return err
	}

	approved, err := s.membershipRepo.ApproveRequest(ctx, communityID, targetUserID)
	if err != nil {
		return err
	}
	if !approved {
		return models.NewNotFoundError("Membership request", targetUserID)
	}

	s.events.Publish(ctx, notifications.MembershipResolved{
		CommunityID:   communityID,
		CommunityName: community.Name,
		UserID:        targetUserID,
		ActorID:       actorID,
		Approved:      true,
	})
	return nil
}

// Reject removes a pending join request without touching membership.
func (s *MembershipService) Reject(ctx context.Context, communityID, targetUserID, actorID uint) error {
	community, err := s.communityRepo.GetByID(ctx, communityID)
	if err != nil {
		return err
	}

	deleted, err := s.membershipRepo.DeleteRequest(ctx, communityID, targetUserID)
	if err != nil {
		return err
	}
	if !deleted {
		return models.NewNotFoundError("Membership request", targetUserID)
	}

	s.events.Publish(ctx, notifications.MembershipResolved{
		CommunityID:   communityID,
		CommunityName: community.Name,
		UserID:        targetUserID,
		ActorID:       actorID,
		Approved:      false,
	})
	return nil
}

// PendingRequests lists the outstanding join requests for a community.
func (s *MembershipService) PendingRequests(ctx context.Context, communityID uint) ([]models.MembershipRequest, error) {
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return nil, err
	}
	return s.membershipRepo.ListPendingRequests(ctx, communityID)
}

// Members lists community members with their profiles.
func (s *MembershipService) Members(ctx context.Context, communityID uint, limit, offset int) ([]models.CommunityMember, error) {
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return nil, err
	}
	return s.membershipRepo.ListMembers(ctx, communityID, limit, offset)
}

// SetModerator promotes or demotes a member. Only the creator (or a platform
// admin) may change roles, and the creator role itself is never reassigned.
func (s *MembershipService) SetModerator(ctx context.Context, communityID, targetUserID, actorID uint, promote bool) error {
	actor, err := s.membershipRepo.GetMembership(ctx, communityID, actorID)
	if err != nil {
		return err
	}
	isCreator := actor != nil && actor.Role == models.CommunityRoleCreator
	if !isCreator {
		user, err := s.userRepo.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if !user.IsAdmin {
			return models.NewForbiddenError("Only the community creator can manage moderators")
		}
	}

	target, err := s.membershipRepo.GetMembership(ctx, communityID, targetUserID)
	if err != nil {
		return err
	}
	if target == nil {
		return models.NewNotFoundError("Membership", targetUserID)
	}
	if target.Role == models.CommunityRoleCreator {
		return models.NewValidationError("The creator role cannot be changed")
	}

	role := models.CommunityRoleMember
	if promote {
		role = models.CommunityRoleModerator
	}
	if target.Role == role {
		return models.NewValidationError(fmt.Sprintf("User already has role %s", role))
	}
	return s.membershipRepo.SetRole(ctx, communityID, targetUserID, role)
}
