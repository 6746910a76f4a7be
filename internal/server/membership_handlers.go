package server

import (
	"strings"

	"chattersphere/internal/models"
	"chattersphere/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// MembershipRequestDTO is the API response model for pending join requests.
type MembershipRequestDTO struct {
	ID          string `json:"id"`
	CommunityID string `json:"community_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	Message     string `json:"message,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CommunityMemberDTO is the API response model for community member listings.
type CommunityMemberDTO struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

// ToggleMembership handles POST /api/communities/:id/membership
// @Summary Toggle community membership
// @Description Join or leave a community. Joining an approval-gated community creates a pending request instead.
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Success 200 {object} service.ToggleResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities/{id}/membership [post]
func (s *Server) ToggleMembership(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, svcErr := s.membershipService.Toggle(ctx, communityID, userID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	observability.MembershipMutations.WithLabelValues(string(result.Action)).Inc()
	return c.JSON(result)
}

// ResolveMembershipRequest handles PATCH /api/communities/:id/membership/:userId
// @Summary Approve or reject a membership request
// @Description Resolve a pending join request. Community moderators only. The request is consumed either way; the requester is notified of the outcome.
// @Tags communities
// @Accept json
// @Produce json
// @Param id path int true "Community ID"
// @Param userId path int true "Requesting user ID"
// @Param request body object{action=string} true "approve or reject"
// @Success 200 {object} object{status=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities/{id}/membership/{userId} [patch]
func (s *Server) ResolveMembershipRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	actorID := c.Locals("userID").(uint)
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action != "approve" && action != "reject" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("action must be approve or reject"))
	}

	// Authorization is checked before the request lookup so a non-moderator
	// probing for request existence always sees 403.
	canModerate, svcErr := s.membershipService.CanModerate(ctx, communityID, actorID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}
	if !canModerate {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Moderator access required"))
	}

	status := "approved"
	if action == "approve" {
		svcErr = s.membershipService.Approve(ctx, communityID, targetUserID, actorID)
	} else {
		status = "rejected"
		svcErr = s.membershipService.Reject(ctx, communityID, targetUserID, actorID)
	}
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	observability.MembershipMutations.WithLabelValues(action).Inc()
	return c.JSON(fiber.Map{"status": status})
}

// GetMembershipRequests handles GET /api/communities/:id/membership-requests
// @Summary List pending membership requests
// @Description List the outstanding join requests for a community. Community moderators only.
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Success 200 {array} MembershipRequestDTO
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities/{id}/membership-requests [get]
func (s *Server) GetMembershipRequests(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	canModerate, svcErr := s.membershipService.CanModerate(ctx, communityID, userID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}
	if !canModerate {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Moderator access required"))
	}

	requests, svcErr := s.membershipService.PendingRequests(ctx, communityID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	resp := make([]MembershipRequestDTO, 0, len(requests))
	for _, request := range requests {
		dto := MembershipRequestDTO{
			ID:          formatID(request.ID),
			CommunityID: formatID(request.CommunityID),
			UserID:      formatID(request.UserID),
			Message:     request.Message,
			CreatedAt:   formatTime(request.CreatedAt),
		}
		if request.User != nil {
			dto.Username = request.User.Username
			dto.Name = request.User.Name
			dto.Avatar = request.User.Avatar
		}
		resp = append(resp, dto)
	}
	return c.JSON(resp)
}

// GetCommunityMembers handles GET /api/communities/:id/members
// @Summary List community members
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Success 200 {array} CommunityMemberDTO
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities/{id}/members [get]
func (s *Server) GetCommunityMembers(c *fiber.Ctx) error {
	ctx := c.Context()
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	pagination := parsePagination(c, 50)

	members, svcErr := s.membershipService.Members(ctx, communityID, pagination.Limit, pagination.Offset)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	resp := make([]CommunityMemberDTO, 0, len(members))
	for _, member := range members {
		dto := CommunityMemberDTO{
			UserID:   formatID(member.UserID),
			Role:     string(member.Role),
			JoinedAt: formatTime(member.CreatedAt),
		}
		if member.User != nil {
			dto.Username = member.User.Username
			dto.Name = member.User.Name
			dto.Avatar = member.User.Avatar
		}
		resp = append(resp, dto)
	}
	return c.JSON(resp)
}

// PromoteModerator handles POST /api/communities/:id/moderators/:userId
// @Summary Promote a member to moderator
// @Description Grant the moderator role. Community creator or platform admin only.
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Param userId path int true "Target user ID"
// @Success 200 {object} object{status=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities/{id}/moderators/{userId} [post]
func (s *Server) PromoteModerator(c *fiber.Ctx) error {
	return s.setModerator(c, true)
}

// DemoteModerator handles DELETE /api/communities/:id/moderators/:userId
// @Summary Demote a moderator to member
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Param userId path int true "Target user ID"
// @Success 200 {object} object{status=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities/{id}/moderators/{userId} [delete]
func (s *Server) DemoteModerator(c *fiber.Ctx) error {
	return s.setModerator(c, false)
}

func (s *Server) setModerator(c *fiber.Ctx, promote bool) error {
	ctx := c.Context()
	actorID := c.Locals("userID").(uint)
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetUserID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if svcErr := s.membershipService.SetModerator(ctx, communityID, targetUserID, actorID, promote); svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	status := "promoted"
	if !promote {
		status = "demoted"
	}
	return c.JSON(fiber.Map{"status": status})
}
