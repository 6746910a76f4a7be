package server

import (
	"chattersphere/internal/models"

	"github.com/gofiber/fiber/v2"
)

// PostAuthorDTO is the embedded author summary on post and comment responses.
type PostAuthorDTO struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// PostDTO is the API response model for posts. IDs are serialized as strings
// so clients treat them as opaque handles, matching the community projections.
type PostDTO struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	ImageURL      string        `json:"image_url,omitempty"`
	CommunityID   string        `json:"community_id,omitempty"`
	ChannelID     string        `json:"channel_id,omitempty"`
	Author        PostAuthorDTO `json:"author"`
	CommentsCount int           `json:"comments_count"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

// CommentDTO is the API response model for post comments.
type CommentDTO struct {
	ID        string        `json:"id"`
	PostID    string        `json:"post_id"`
	ParentID  string        `json:"parent_id,omitempty"`
	Content   string        `json:"content"`
	Author    PostAuthorDTO `json:"author"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

// toPostAuthorDTO projects an author summary. Write paths return the row
// without a preloaded user, so the profile fields fill in only on reads.
func toPostAuthorDTO(user models.User, userID uint) PostAuthorDTO {
	author := PostAuthorDTO{ID: formatID(userID)}
	if user.ID != 0 {
		author.Username = user.Username
		author.Name = user.Name
		author.Avatar = user.Avatar
	}
	return author
}

func toPostDTO(post *models.Post) PostDTO {
	dto := PostDTO{
		ID:            formatID(post.ID),
		Title:         post.Title,
		Content:       post.Content,
		ImageURL:      post.ImageURL,
		Author:        toPostAuthorDTO(post.User, post.UserID),
		CommentsCount: post.CommentsCount,
		CreatedAt:     formatTime(post.CreatedAt),
		UpdatedAt:     formatTime(post.UpdatedAt),
	}
	if post.CommunityID != nil {
		dto.CommunityID = formatID(*post.CommunityID)
	}
	if post.ChannelID != nil {
		dto.ChannelID = formatID(*post.ChannelID)
	}
	return dto
}

func toCommentDTO(comment models.Comment) CommentDTO {
	dto := CommentDTO{
		ID:        formatID(comment.ID),
		PostID:    formatID(comment.PostID),
		Content:   comment.Content,
		Author:    toPostAuthorDTO(comment.User, comment.UserID),
		CreatedAt: formatTime(comment.CreatedAt),
		UpdatedAt: formatTime(comment.UpdatedAt),
	}
	if comment.ParentID != nil {
		dto.ParentID = formatID(*comment.ParentID)
	}
	return dto
}

// CreateCommunityPost handles POST /api/communities/:id/posts
// @Summary Create a post in a community
// @Description Create a post. Community members only.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Community ID"
// @Param request body object{title=string,content=string,image_url=string} true "Post"
// @Success 201 {object} PostDTO
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /communities/{id}/posts [post]
func (s *Server) CreateCommunityPost(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, svcErr := s.postService.CreateInCommunity(ctx, communityID, userID, req.Title, req.Content, req.ImageURL)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}
	return c.Status(fiber.StatusCreated).JSON(toPostDTO(post))
}

// GetCommunityPosts handles GET /api/communities/:id/posts
// @Summary List a community's posts
// @Description List posts, newest first. Private communities are readable by members only.
// @Tags posts
// @Produce json
// @Param id path int true "Community ID"
// @Success 200 {array} PostDTO
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{id}/posts [get]
func (s *Server) GetCommunityPosts(c *fiber.Ctx) error {
	ctx := c.Context()
	communityID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	pagination := parsePagination(c, 25)

	viewerID, _ := s.optionalViewerID(c)

	posts, svcErr := s.postService.ListByCommunity(ctx, communityID, viewerID, pagination.Limit, pagination.Offset)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	resp := make([]PostDTO, 0, len(posts))
	for i := range posts {
		resp = append(resp, toPostDTO(&posts[i]))
	}
	return c.JSON(resp)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostDTO
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, svcErr := s.postRepo.GetByID(ctx, postID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	// Posts inherit their community's privacy.
	if post.CommunityID != nil {
		community, commErr := s.communityRepo.GetByID(ctx, *post.CommunityID)
		if commErr == nil && community.IsPrivate {
			viewerID, _ := s.optionalViewerID(c)
			membership, memErr := s.membershipRepo.GetMembership(ctx, community.ID, viewerID)
			if memErr != nil {
				return respondServiceError(c, memErr)
			}
			if membership == nil {
				return models.RespondWithError(c, fiber.StatusForbidden,
					models.NewForbiddenError("This community is private"))
			}
		}
	}

	return c.JSON(toPostDTO(post))
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Description Add a comment. The post author is notified unless they are the commenter.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string,parent_id=integer} true "Comment"
// @Success 201 {object} CommentDTO
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, svcErr := s.postService.CreateComment(ctx, postID, userID, req.Content, req.ParentID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}
	return c.Status(fiber.StatusCreated).JSON(toCommentDTO(*comment))
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List a post's comments
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} CommentDTO
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	pagination := parsePagination(c, 50)

	comments, svcErr := s.postService.ListComments(ctx, postID, pagination.Limit, pagination.Offset)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	resp := make([]CommentDTO, 0, len(comments))
	for _, comment := range comments {
		resp = append(resp, toCommentDTO(comment))
	}
	return c.JSON(resp)
}
