package server

import (
	"chattersphere/internal/cache"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
// @Summary List notifications
// @Description List the caller's notifications, newest first. Use unread=true to filter.
// @Tags notifications
// @Produce json
// @Success 200 {array} models.Notification
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	pagination := parsePagination(c, 25)
	unreadOnly := c.QueryBool("unread", false)

	notifications, err := s.notificationService.List(ctx, userID, unreadOnly, pagination.Limit, pagination.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(notifications)
}

// GetUnreadNotificationCount handles GET /api/notifications/unread-count
// @Summary Count unread notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} object{count=integer}
// @Security BearerAuth
// @Router /notifications/unread-count [get]
func (s *Server) GetUnreadNotificationCount(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	// The badge count is hit on every page load, so it gets a short cache.
	key := cache.UnreadCountKey(userID)
	var cached struct {
		Count int64 `json:"count"`
	}
	if err := cache.GetJSON(ctx, key, &cached); err == nil {
		return c.JSON(fiber.Map{"count": cached.Count})
	}

	count, err := s.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	cached.Count = count
	cache.SetJSON(ctx, key, cached, cache.UnreadCountTTL)
	return c.JSON(fiber.Map{"count": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
// @Summary Mark a notification as read
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} object{status=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)
	notificationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if svcErr := s.notificationService.MarkRead(ctx, userID, notificationID); svcErr != nil {
		return respondServiceError(c, svcErr)
	}

	cache.Invalidate(ctx, cache.UnreadCountKey(userID))
	return c.JSON(fiber.Map{"status": "read"})
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
// @Summary Mark all notifications as read
// @Tags notifications
// @Produce json
// @Success 200 {object} object{updated=integer}
// @Security BearerAuth
// @Router /notifications/read-all [post]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	updated, err := s.notificationService.MarkAllRead(ctx, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	cache.Invalidate(ctx, cache.UnreadCountKey(userID))
	return c.JSON(fiber.Map{"updated": updated})
}
