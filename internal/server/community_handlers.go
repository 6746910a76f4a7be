package server

import (
	"strconv"
	"strings"

	"chattersphere/internal/featureflags"
	"chattersphere/internal/models"
	"chattersphere/internal/repository"
	"chattersphere/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CommunityCreatorDTO is the embedded creator summary on community responses.
type CommunityCreatorDTO struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
}

// CommunityDTO is the API response model for community endpoints. IDs are
// serialized as strings so clients treat them as opaque handles.
type CommunityDTO struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	Slug             string                    `json:"slug"`
	Description      string                    `json:"description"`
	Image            string                    `json:"image,omitempty"`
	Banner           string                    `json:"banner,omitempty"`
	IsPrivate        bool                      `json:"is_private"`
	RequiresApproval bool                      `json:"requires_approval"`
	Creator          CommunityCreatorDTO       `json:"creator"`
	MembersCount     int64                     `json:"members_count"`
	PostsCount       int64                     `json:"posts_count"`
	ChannelsCount    int64                     `json:"channels_count"`
	Membership       service.MembershipStatus  `json:"membership"`
	CreatedAt        string                    `json:"created_at"`
	UpdatedAt        string                    `json:"updated_at"`
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func toCommunityDTO(community *models.Community, counts repository.CommunityCounts, membership service.MembershipStatus) CommunityDTO {
	// Deleted or missing creators degrade to a placeholder so the projection
	// never fails on a dangling reference.
	creator := CommunityCreatorDTO{Username: "unknown", Name: "Unknown User"}
	if community.Creator != nil {
		creator = CommunityCreatorDTO{
			ID:       formatID(community.Creator.ID),
			Username: community.Creator.Username,
			Name:     community.Creator.Name,
			Avatar:   community.Creator.Avatar,
		}
	}

	return CommunityDTO{
		ID:               formatID(community.ID),
		Name:             community.Name,
		Slug:             community.Slug,
		Description:      community.Description,
		Image:            community.Image,
		Banner:           community.Banner,
		IsPrivate:        community.IsPrivate,
		RequiresApproval: community.RequiresApproval,
		Creator:          creator,
		MembersCount:     counts.Members,
		PostsCount:       counts.Posts,
		ChannelsCount:    counts.Channels,
		Membership:       membership,
		CreatedAt:        formatTime(community.CreatedAt),
		UpdatedAt:        formatTime(community.UpdatedAt),
	}
}

// ChannelDTO is the API response model for community channels.
type ChannelDTO struct {
	ID          string `json:"id"`
	CommunityID string `json:"community_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

func toChannelDTO(channel models.Channel) ChannelDTO {
	return ChannelDTO{
		ID:          formatID(channel.ID),
		CommunityID: formatID(channel.CommunityID),
		Name:        channel.Name,
		Description: channel.Description,
		CreatedAt:   formatTime(channel.CreatedAt),
	}
}

// GetCommunities handles GET /api/communities
// @Summary List communities
// @Description List browsable communities. Private communities are hidden from anonymous viewers.
// @Tags communities
// @Produce json
// @Success 200 {array} CommunityDTO
// @Router /communities [get]
func (s *Server) GetCommunities(c *fiber.Ctx) error {
	ctx := c.Context()
	pagination := parsePagination(c, 50)

	viewerID, authenticated := s.optionalViewerID(c)

	communities, err := s.communityService.List(ctx, authenticated, pagination.Limit, pagination.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	resp := make([]CommunityDTO, 0, len(communities))
	for i := range communities {
		community := &communities[i]
		counts, countsErr := s.communityRepo.Counts(ctx, community.ID)
		if countsErr != nil {
			counts = repository.CommunityCounts{}
		}
		membership := s.membershipService.Status(ctx, community.ID, viewerID)
		resp = append(resp, toCommunityDTO(community, counts, membership))
	}

	return c.JSON(resp)
}

// GetCommunityBySlug handles GET /api/communities/slug/:slug
// @Summary Get community by slug
// @Description Fetch a community projection by its slug, including derived counts and the viewer's membership status.
// @Tags communities
// @Produce json
// @Param slug path string true "Community slug"
// @Success 200 {object} CommunityDTO
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/slug/{slug} [get]
func (s *Server) GetCommunityBySlug(c *fiber.Ctx) error {
	ctx := c.Context()
	slug := strings.TrimSpace(strings.ToLower(c.Params("slug")))
	if slug == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("slug is required"))
	}

	community, counts, err := s.communityService.GetBySlug(ctx, slug)
	if err != nil {
		return respondServiceError(c, err)
	}

	viewerID, _ := s.optionalViewerID(c)
	membership := s.membershipService.Status(ctx, community.ID, viewerID)

	return c.JSON(toCommunityDTO(community, counts, membership))
}

// GetCommunityByID handles GET /api/communities/:id
// @Summary Get community by ID
// @Description Fetch a community projection by its numeric ID.
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Success 200 {object} CommunityDTO
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{id} [get]
func (s *Server) GetCommunityByID(c *fiber.Ctx) error {
	ctx := c.Context()
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	community, counts, svcErr := s.communityService.GetByID(ctx, communityID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	viewerID, _ := s.optionalViewerID(c)
	membership := s.membershipService.Status(ctx, community.ID, viewerID)

	return c.JSON(toCommunityDTO(community, counts, membership))
}

// CreateCommunity handles POST /api/communities
// @Summary Create community
// @Description Create a community. The caller becomes the creator member and a default "general" channel is created.
// @Tags communities
// @Accept json
// @Produce json
// @Param request body service.CreateCommunityInput true "Community"
// @Success 201 {object} CommunityDTO
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities [post]
func (s *Server) CreateCommunity(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	if !s.featureFlags.EnabledDefault(featureflags.FlagCommunityCreation, userID, true) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Community creation is currently disabled"))
	}

	var req struct {
		Name             string `json:"name"`
		Slug             string `json:"slug"`
		Description      string `json:"description"`
		Image            string `json:"image"`
		Banner           string `json:"banner"`
		IsPrivate        bool   `json:"is_private"`
		RequiresApproval bool   `json:"requires_approval"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.IsPrivate && !s.featureFlags.EnabledDefault(featureflags.FlagPrivateCommunities, userID, true) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Private communities are currently disabled"))
	}

	community, err := s.communityService.Create(ctx, userID, service.CreateCommunityInput{
		Name:             req.Name,
		Slug:             req.Slug,
		Description:      req.Description,
		Image:            req.Image,
		Banner:           req.Banner,
		IsPrivate:        req.IsPrivate,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	counts, countsErr := s.communityRepo.Counts(ctx, community.ID)
	if countsErr != nil {
		counts = repository.CommunityCounts{}
	}
	membership := s.membershipService.Status(ctx, community.ID, userID)

	return c.Status(fiber.StatusCreated).JSON(toCommunityDTO(community, counts, membership))
}

// GetCommunityChannels handles GET /api/communities/:id/channels
// @Summary List community channels
// @Tags communities
// @Produce json
// @Param id path int true "Community ID"
// @Success 200 {array} ChannelDTO
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{id}/channels [get]
func (s *Server) GetCommunityChannels(c *fiber.Ctx) error {
	ctx := c.Context()
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	channels, svcErr := s.communityService.Channels(ctx, communityID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	resp := make([]ChannelDTO, 0, len(channels))
	for _, channel := range channels {
		resp = append(resp, toChannelDTO(channel))
	}
	return c.JSON(resp)
}

// CreateCommunityChannel handles POST /api/communities/:id/channels
// @Summary Create community channel
// @Description Add a channel to a community. Moderators only.
// @Tags communities
// @Accept json
// @Produce json
// @Param id path int true "Community ID"
// @Param request body object{name=string,description=string} true "Channel"
// @Success 201 {object} ChannelDTO
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities/{id}/channels [post]
func (s *Server) CreateCommunityChannel(c *fiber.Ctx) error {
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

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	channel, svcErr := s.communityService.CreateChannel(ctx, communityID, userID, req.Name, req.Description)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}
	return c.Status(fiber.StatusCreated).JSON(toChannelDTO(*channel))
}
