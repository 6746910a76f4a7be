package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chattersphere/internal/config"
	"chattersphere/internal/featureflags"
	"chattersphere/internal/models"
	"chattersphere/internal/notifications"
	"chattersphere/internal/repository"
	"chattersphere/internal/service"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Community{},
		&models.CommunityMember{},
		&models.MembershipRequest{},
		&models.Channel{},
		&models.Post{},
		&models.Comment{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	return db
}

// newHandlerTestServer wires the server by hand rather than through
// NewServerWithDeps so tests skip prometheus middleware registration.
func newHandlerTestServer(t *testing.T, db *gorm.DB) *Server {
	t.Helper()

	userRepo := repository.NewUserRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	postRepo := repository.NewPostRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	events := notifications.NewDispatcher(notificationRepo, nil)

	s := &Server{
		config:           &config.Config{},
		db:               db,
		userRepo:         userRepo,
		communityRepo:    communityRepo,
		membershipRepo:   membershipRepo,
		postRepo:         postRepo,
		notificationRepo: notificationRepo,
		events:           events,
		featureFlags:     featureflags.NewManager(""),
	}
	s.communityService = service.NewCommunityService(communityRepo)
	s.membershipService = service.NewMembershipService(membershipRepo, communityRepo, userRepo, events)
	s.postService = service.NewPostService(postRepo, membershipRepo, communityRepo, events)
	s.notificationService = service.NewNotificationService(notificationRepo)
	return s
}

// newMembershipTestApp registers the membership routes behind a middleware
// that injects *actorID, so a single app can act as different users.
func newMembershipTestApp(s *Server, actorID *uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", *actorID)
		return c.Next()
	})
	app.Post("/api/communities/:id/membership", s.ToggleMembership)
	app.Patch("/api/communities/:id/membership/:userId", s.ResolveMembershipRequest)
	app.Get("/api/communities/:id/membership-requests", s.GetMembershipRequests)
	app.Get("/api/communities/:id/members", s.GetCommunityMembers)
	app.Post("/api/communities/:id/moderators/:userId", s.PromoteModerator)
	app.Delete("/api/communities/:id/moderators/:userId", s.DemoteModerator)
	return app
}

func createTestUser(t *testing.T, db *gorm.DB, username string, isAdmin bool) models.User {
	t.Helper()
	user := models.User{ExternalID: "test|" + username, Username: username, Name: username, IsAdmin: isAdmin}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func createTestCommunity(t *testing.T, db *gorm.DB, slug string, creator models.User, requiresApproval bool) models.Community {
	t.Helper()
	community := models.Community{
		Name:             slug,
		Slug:             slug,
		CreatorID:        &creator.ID,
		RequiresApproval: requiresApproval,
	}
	if err := db.Create(&community).Error; err != nil {
		t.Fatalf("create community %s: %v", slug, err)
	}
	member := models.CommunityMember{CommunityID: community.ID, UserID: creator.ID, Role: models.CommunityRoleCreator}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("create creator membership: %v", err)
	}
	return community
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body []byte) *http.Response {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestToggleMembershipJoinThenLeave(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	joiner := createTestUser(t, db, "joiner", false)
	community := createTestCommunity(t, db, "dev-talk", creator, false)

	actorID := joiner.ID
	app := newMembershipTestApp(s, &actorID)

	target := "/api/communities/1/membership"

	resp := doJSON(t, app, http.MethodPost, target, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", resp.StatusCode)
	}
	var result service.ToggleResult
	decodeBody(t, resp, &result)
	if result.Action != service.MembershipActionJoin || !result.IsMember {
		t.Fatalf("expected join result, got %+v", result)
	}
	if result.MemberCount != 2 {
		t.Fatalf("expected member count 2 after join, got %d", result.MemberCount)
	}

	var member models.CommunityMember
	if err := db.Where("community_id = ? AND user_id = ?", community.ID, joiner.ID).First(&member).Error; err != nil {
		t.Fatalf("membership row missing after join: %v", err)
	}
	if member.Role != models.CommunityRoleMember {
		t.Fatalf("expected member role, got %s", member.Role)
	}

	resp = doJSON(t, app, http.MethodPost, target, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leave: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &result)
	if result.Action != service.MembershipActionLeave || result.IsMember {
		t.Fatalf("expected leave result, got %+v", result)
	}

	var count int64
	db.Model(&models.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", community.ID, joiner.ID).
		Count(&count)
	if count != 0 {
		t.Fatalf("membership row should be gone after leave, found %d", count)
	}
}

func TestToggleMembershipApprovalGated(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	joiner := createTestUser(t, db, "joiner", false)
	community := createTestCommunity(t, db, "private-club", creator, true)

	actorID := joiner.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodPost, "/api/communities/1/membership", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result service.ToggleResult
	decodeBody(t, resp, &result)
	if result.Action != service.MembershipActionRequest || result.IsMember {
		t.Fatalf("expected pending request result, got %+v", result)
	}

	var requests int64
	db.Model(&models.MembershipRequest{}).
		Where("community_id = ? AND user_id = ?", community.ID, joiner.ID).
		Count(&requests)
	if requests != 1 {
		t.Fatalf("expected 1 pending request, got %d", requests)
	}

	var members int64
	db.Model(&models.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", community.ID, joiner.ID).
		Count(&members)
	if members != 0 {
		t.Fatalf("approval-gated join must not create a membership, found %d", members)
	}
}

func TestToggleMembershipCreatorCannotLeave(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	createTestCommunity(t, db, "dev-talk", creator, false)

	actorID := creator.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodPost, "/api/communities/1/membership", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestToggleMembershipUnknownCommunity(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	joiner := createTestUser(t, db, "joiner", false)

	actorID := joiner.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodPost, "/api/communities/999/membership", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestResolveMembershipRequestApprove(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	requester := createTestUser(t, db, "requester", false)
	community := createTestCommunity(t, db, "private-club", creator, true)

	request := models.MembershipRequest{CommunityID: community.ID, UserID: requester.ID}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}

	actorID := creator.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodPatch, "/api/communities/1/membership/2", []byte(`{"action":"approve"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "approved" {
		t.Fatalf("expected status approved, got %q", body["status"])
	}

	var member models.CommunityMember
	if err := db.Where("community_id = ? AND user_id = ?", community.ID, requester.ID).First(&member).Error; err != nil {
		t.Fatalf("membership row missing after approval: %v", err)
	}
	if member.Role != models.CommunityRoleMember {
		t.Fatalf("expected member role, got %s", member.Role)
	}

	var remaining int64
	db.Model(&models.MembershipRequest{}).Where("id = ?", request.ID).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("request should be consumed by approval")
	}

	var notification models.Notification
	if err := db.Where("recipient_id = ?", requester.ID).First(&notification).Error; err != nil {
		t.Fatalf("expected an approval notification: %v", err)
	}
	if notification.Type != models.NotificationTypeCommunityJoin {
		t.Fatalf("expected %s notification, got %s", models.NotificationTypeCommunityJoin, notification.Type)
	}
	if notification.ActorID == nil || *notification.ActorID != creator.ID {
		t.Fatalf("expected notification actor %d, got %v", creator.ID, notification.ActorID)
	}
}

func TestResolveMembershipRequestReject(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	requester := createTestUser(t, db, "requester", false)
	community := createTestCommunity(t, db, "private-club", creator, true)

	request := models.MembershipRequest{CommunityID: community.ID, UserID: requester.ID}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}

	actorID := creator.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodPatch, "/api/communities/1/membership/2", []byte(`{"action":"reject"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "rejected" {
		t.Fatalf("expected status rejected, got %q", body["status"])
	}

	var members int64
	db.Model(&models.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", community.ID, requester.ID).
		Count(&members)
	if members != 0 {
		t.Fatalf("rejection must not create a membership")
	}

	var notification models.Notification
	if err := db.Where("recipient_id = ?", requester.ID).First(&notification).Error; err != nil {
		t.Fatalf("expected a rejection notification: %v", err)
	}
	if notification.Type != models.NotificationTypeCommunityRejected {
		t.Fatalf("expected %s notification, got %s", models.NotificationTypeCommunityRejected, notification.Type)
	}
}

func TestResolveMembershipRequestForbidden(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	requester := createTestUser(t, db, "requester", false)
	bystander := createTestUser(t, db, "bystander", false)
	community := createTestCommunity(t, db, "private-club", creator, true)

	member := models.CommunityMember{CommunityID: community.ID, UserID: bystander.ID, Role: models.CommunityRoleMember}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("create bystander membership: %v", err)
	}
	request := models.MembershipRequest{CommunityID: community.ID, UserID: requester.ID}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}

	actorID := bystander.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodPatch, "/api/communities/1/membership/2", []byte(`{"action":"approve"}`))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-moderator, got %d", resp.StatusCode)
	}

	var remaining int64
	db.Model(&models.MembershipRequest{}).Where("id = ?", request.ID).Count(&remaining)
	if remaining != 1 {
		t.Fatalf("a forbidden resolution must leave the request intact")
	}
}

func TestResolveMembershipRequestUnknownCommunity(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	outsider := createTestUser(t, db, "outsider", false)

	actorID := outsider.ID
	app := newMembershipTestApp(s, &actorID)

	// A dead community ID reads as 404 even for a caller with no moderator
	// standing anywhere.
	resp := doJSON(t, app, http.MethodPatch, "/api/communities/999/membership/1", []byte(`{"action":"approve"}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown community, got %d", resp.StatusCode)
	}

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	if body.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND code, got %q", body.Code)
	}
}

func TestResolveMembershipRequestStale(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	createTestUser(t, db, "requester", false)
	createTestCommunity(t, db, "private-club", creator, true)

	actorID := creator.ID
	app := newMembershipTestApp(s, &actorID)

	// No pending request exists, e.g. another moderator already resolved it.
	resp := doJSON(t, app, http.MethodPatch, "/api/communities/1/membership/2", []byte(`{"action":"approve"}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a stale request, got %d", resp.StatusCode)
	}

	var notificationCount int64
	db.Model(&models.Notification{}).Count(&notificationCount)
	if notificationCount != 0 {
		t.Fatalf("a stale approval must not notify")
	}
}

func TestResolveMembershipRequestBadAction(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	createTestCommunity(t, db, "private-club", creator, true)

	actorID := creator.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodPatch, "/api/communities/1/membership/2", []byte(`{"action":"maybe"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", resp.StatusCode)
	}
}

func TestGetMembershipRequests(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	requester := createTestUser(t, db, "requester", false)
	community := createTestCommunity(t, db, "private-club", creator, true)

	request := models.MembershipRequest{CommunityID: community.ID, UserID: requester.ID, Message: "let me in"}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}

	actorID := creator.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodGet, "/api/communities/1/membership-requests", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var requests []MembershipRequestDTO
	decodeBody(t, resp, &requests)
	if len(requests) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(requests))
	}
	if requests[0].Username != "requester" {
		t.Fatalf("expected requester profile on DTO, got %q", requests[0].Username)
	}
	if requests[0].Message != "let me in" {
		t.Fatalf("expected request message, got %q", requests[0].Message)
	}

	// A plain viewer gets 403, not an empty list.
	actorID = requester.ID
	resp = doJSON(t, app, http.MethodGet, "/api/communities/1/membership-requests", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-moderator, got %d", resp.StatusCode)
	}
}

func TestGetCommunityMembers(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	joiner := createTestUser(t, db, "joiner", false)
	community := createTestCommunity(t, db, "dev-talk", creator, false)

	member := models.CommunityMember{CommunityID: community.ID, UserID: joiner.ID, Role: models.CommunityRoleMember}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}

	actorID := joiner.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodGet, "/api/communities/1/members", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var members []CommunityMemberDTO
	decodeBody(t, resp, &members)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	roles := map[string]string{}
	for _, m := range members {
		roles[m.Username] = m.Role
	}
	if roles["creator"] != string(models.CommunityRoleCreator) {
		t.Fatalf("expected creator role, got %q", roles["creator"])
	}
	if roles["joiner"] != string(models.CommunityRoleMember) {
		t.Fatalf("expected member role, got %q", roles["joiner"])
	}
}

func TestPromoteAndDemoteModerator(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	creator := createTestUser(t, db, "creator", false)
	joiner := createTestUser(t, db, "joiner", false)
	community := createTestCommunity(t, db, "dev-talk", creator, false)

	member := models.CommunityMember{CommunityID: community.ID, UserID: joiner.ID, Role: models.CommunityRoleMember}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}

	actorID := creator.ID
	app := newMembershipTestApp(s, &actorID)

	resp := doJSON(t, app, http.MethodPost, "/api/communities/1/moderators/2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("promote: expected 200, got %d", resp.StatusCode)
	}

	var updated models.CommunityMember
	if err := db.Where("community_id = ? AND user_id = ?", community.ID, joiner.ID).First(&updated).Error; err != nil {
		t.Fatalf("load membership: %v", err)
	}
	if updated.Role != models.CommunityRoleModerator {
		t.Fatalf("expected moderator role after promote, got %s", updated.Role)
	}

	resp = doJSON(t, app, http.MethodDelete, "/api/communities/1/moderators/2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("demote: expected 200, got %d", resp.StatusCode)
	}

	if err := db.Where("community_id = ? AND user_id = ?", community.ID, joiner.ID).First(&updated).Error; err != nil {
		t.Fatalf("load membership: %v", err)
	}
	if updated.Role != models.CommunityRoleMember {
		t.Fatalf("expected member role after demote, got %s", updated.Role)
	}

	// A plain member cannot manage moderators.
	actorID = joiner.ID
	resp = doJSON(t, app, http.MethodPost, "/api/communities/1/moderators/2", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-creator, got %d", resp.StatusCode)
	}
}
