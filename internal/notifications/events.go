package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chattersphere/internal/middleware"
	"chattersphere/internal/models"
	"chattersphere/internal/observability"
	"chattersphere/internal/repository"

	"github.com/google/uuid"
)

// Event is a domain event emitted by a mutation that wants someone notified.
type Event interface {
	Kind() string
}

// MembershipResolved is emitted when a pending join request is approved or
// rejected on behalf of the requesting user.
type MembershipResolved struct {
	CommunityID   uint
	CommunityName string
	UserID        uint
	ActorID       uint
	Approved      bool
}

// Kind implements Event.
func (MembershipResolved) Kind() string { return "membership_resolved" }

// CommentCreated is emitted when a comment lands on someone else's post.
type CommentCreated struct {
	PostID       uint
	CommentID    uint
	PostAuthorID uint
	ActorID      uint
	PostTitle    string
}

// Kind implements Event.
func (CommentCreated) Kind() string { return "comment_created" }

// Publisher accepts domain events. Mutations publish and move on: delivering
// the notification is the consumer's problem, so a notification failure can
// never fail the mutation that triggered it.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Dispatcher consumes domain events synchronously in-process: it writes the
// notification record and pushes a realtime payload to the recipient's Redis
// channel. Both halves are best-effort and only logged on failure.
type Dispatcher struct {
	repo     repository.NotificationRepository
	notifier *Notifier
}

// NewDispatcher returns a Dispatcher writing through the given repository and
// notifier. The notifier may be nil when Redis is unavailable.
func NewDispatcher(repo repository.NotificationRepository, notifier *Notifier) *Dispatcher {
	return &Dispatcher{repo: repo, notifier: notifier}
}

// Publish implements Publisher.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	notification, ok := d.translate(event)
	if !ok {
		return
	}

	observability.NotificationFanout.WithLabelValues(string(notification.Type)).Inc()

	if err := d.repo.Create(ctx, notification); err != nil {
		middleware.Logger.ErrorContext(ctx, "notification write failed",
			slog.String("event", event.Kind()),
			slog.Any("recipient_id", notification.RecipientID),
			slog.String("error", err.Error()))
		return
	}

	if d.notifier == nil {
		return
	}
	payload := map[string]any{
		"event_id":   uuid.NewString(),
		"id":         notification.ID,
		"type":       notification.Type,
		"message":    notification.Message,
		"created_at": notification.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := d.notifier.PublishUserJSON(ctx, notification.RecipientID, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "notification publish failed",
			slog.String("event", event.Kind()),
			slog.Any("recipient_id", notification.RecipientID),
			slog.String("error", err.Error()))
	}
}

// translate maps a domain event to the notification it should produce.
// Events that notify the actor about their own action are dropped.
func (d *Dispatcher) translate(event Event) (*models.Notification, bool) {
	switch e := event.(type) {
	case MembershipResolved:
		notificationType := models.NotificationTypeCommunityJoin
		message := fmt.Sprintf("Your request to join %s was accepted", e.CommunityName)
		if !e.Approved {
			notificationType = models.NotificationTypeCommunityRejected
			message = fmt.Sprintf("Your request to join %s was declined", e.CommunityName)
		}
		actorID := e.ActorID
		communityID := e.CommunityID
		return &models.Notification{
			RecipientID: e.UserID,
			ActorID:     &actorID,
			Type:        notificationType,
			Message:     message,
			CommunityID: &communityID,
		}, true
	case CommentCreated:
		if e.ActorID == e.PostAuthorID {
			return nil, false
		}
		actorID := e.ActorID
		postID := e.PostID
		commentID := e.CommentID
		return &models.Notification{
			RecipientID: e.PostAuthorID,
			ActorID:     &actorID,
			Type:        models.NotificationTypeComment,
			Message:     fmt.Sprintf("New comment on your post %q", e.PostTitle),
			PostID:      &postID,
			CommentID:   &commentID,
		}, true
	default:
		return nil, false
	}
}
