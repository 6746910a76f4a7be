package server

import (
	"strings"

	"chattersphere/internal/cache"
	"chattersphere/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UserDTO is the public profile projection.
type UserDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Bio       string `json:"bio,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at"`
}

func toUserDTO(user *models.User) UserDTO {
	return UserDTO{
		ID:        formatID(user.ID),
		Username:  user.Username,
		Name:      user.Name,
		Bio:       user.Bio,
		Avatar:    user.Avatar,
		IsAdmin:   user.IsAdmin,
		CreatedAt: formatTime(user.CreatedAt),
	}
}

// GetMyProfile handles GET /api/users/me
// @Summary Get own profile
// @Tags users
// @Produce json
// @Success 200 {object} UserDTO
// @Security BearerAuth
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(toUserDTO(user))
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update own profile
// @Description Update username, display name, bio, or avatar. The identity itself lives with the provider.
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{username=string,name=string,bio=string,avatar=string} true "Profile"
// @Success 200 {object} UserDTO
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		Username *string `json:"username"`
		Name     *string `json:"name"`
		Bio      *string `json:"bio"`
		Avatar   *string `json:"avatar"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if len(username) < 3 || len(username) > 40 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("username must be between 3 and 40 characters"))
		}
		user.Username = username
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Avatar != nil {
		user.Avatar = strings.TrimSpace(*req.Avatar)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return respondServiceError(c, err)
	}

	cache.Invalidate(ctx, cache.UserKey(userID))
	return c.JSON(toUserDTO(user))
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get a user's public profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserDTO
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, svcErr := s.userRepo.GetByID(ctx, userID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}
	return c.JSON(toUserDTO(user))
}

// GetUserCached handles GET /api/users/:id/cached
// @Summary Get a user's public profile (cached)
// @Description Cache-backed profile lookup for hot paths like member lists.
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserDTO
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/cached [get]
func (s *Server) GetUserCached(c *fiber.Ctx) error {
	ctx := c.Context()
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	key := cache.UserKey(userID)
	var cached UserDTO
	if err := cache.GetJSON(ctx, key, &cached); err == nil {
		c.Set("X-Cache", "HIT")
		return c.JSON(cached)
	}

	user, svcErr := s.userRepo.GetByID(ctx, userID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	dto := toUserDTO(user)
	cache.SetJSON(ctx, key, dto, cache.UserTTL)
	c.Set("X-Cache", "MISS")
	return c.JSON(dto)
}

// PromoteToAdmin handles POST /api/users/:id/promote-admin
// @Summary Grant platform admin
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{status=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/promote-admin [post]
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, true)
}

// DemoteFromAdmin handles POST /api/users/:id/demote-admin
// @Summary Revoke platform admin
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{status=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/demote-admin [post]
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, false)
}

func (s *Server) setAdmin(c *fiber.Ctx, admin bool) error {
	ctx := c.Context()
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, svcErr := s.userRepo.GetByID(ctx, targetID)
	if svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	user.IsAdmin = admin
	if err := s.userRepo.Update(ctx, user); err != nil {
		return respondServiceError(c, err)
	}

	cache.Invalidate(ctx, cache.UserKey(targetID))
	status := "promoted"
	if !admin {
		status = "demoted"
	}
	return c.JSON(fiber.Map{"status": status})
}
