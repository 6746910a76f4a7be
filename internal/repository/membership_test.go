package repository

import (
	"context"
	"testing"

	"chattersphere/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMembershipTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Community{},
		&models.CommunityMember{},
		&models.MembershipRequest{},
	))
	return db
}

func TestAddMemberIsIdempotent(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	inserted, err := repo.AddMember(ctx, 1, 42, models.CommunityRoleMember)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second insert hits the composite key and reports no change.
	inserted, err = repo.AddMember(ctx, 1, 42, models.CommunityRoleMember)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := repo.MemberCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAddMemberDoesNotOverwriteRole(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	_, err := repo.AddMember(ctx, 1, 42, models.CommunityRoleModerator)
	require.NoError(t, err)

	// A duplicate join must not demote an existing moderator.
	_, err = repo.AddMember(ctx, 1, 42, models.CommunityRoleMember)
	require.NoError(t, err)

	membership, err := repo.GetMembership(ctx, 1, 42)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, models.CommunityRoleModerator, membership.Role)
}

func TestRemoveMemberReportsPresence(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	_, err := repo.AddMember(ctx, 1, 42, models.CommunityRoleMember)
	require.NoError(t, err)

	removed, err := repo.RemoveMember(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveMember(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGetMembershipAbsenceIsNil(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)

	membership, err := repo.GetMembership(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Nil(t, membership)
}

func TestCreateRequestReusesExisting(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateRequest(ctx, &models.MembershipRequest{CommunityID: 1, UserID: 42}))
	require.NoError(t, repo.CreateRequest(ctx, &models.MembershipRequest{CommunityID: 1, UserID: 42}))

	var count int64
	db.Model(&models.MembershipRequest{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestApproveRequestConsumesAndJoins(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateRequest(ctx, &models.MembershipRequest{CommunityID: 1, UserID: 42}))

	approved, err := repo.ApproveRequest(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, approved)

	membership, err := repo.GetMembership(ctx, 1, 42)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, models.CommunityRoleMember, membership.Role)

	request, err := repo.GetPendingRequest(ctx, 1, 42)
	require.NoError(t, err)
	assert.Nil(t, request)
}

func TestApproveRequestStaleLosesRace(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateRequest(ctx, &models.MembershipRequest{CommunityID: 1, UserID: 42}))

	approved, err := repo.ApproveRequest(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, approved)

	// A second moderator approving the same request finds nothing to consume.
	approved, err = repo.ApproveRequest(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, approved)

	count, err := repo.MemberCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestApproveAfterRejectIsStale(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateRequest(ctx, &models.MembershipRequest{CommunityID: 1, UserID: 42}))

	rejected, err := repo.DeleteRequest(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, rejected)

	approved, err := repo.ApproveRequest(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, approved)

	membership, err := repo.GetMembership(ctx, 1, 42)
	require.NoError(t, err)
	assert.Nil(t, membership, "a rejected request must not produce a membership")
}

func TestSetRoleMissingMembership(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)

	err := repo.SetRole(context.Background(), 1, 42, models.CommunityRoleModerator)
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestListMembersOrdersByJoin(t *testing.T) {
	t.Parallel()

	db := setupMembershipTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	for _, userID := range []uint{10, 11, 12} {
		user := models.User{ID: userID, ExternalID: "test|" + string(rune('a'+userID)), Username: string(rune('a' + userID))}
		require.NoError(t, db.Create(&user).Error)
		_, err := repo.AddMember(ctx, 1, userID, models.CommunityRoleMember)
		require.NoError(t, err)
	}

	members, err := repo.ListMembers(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Len(t, members, 3)
	for _, member := range members {
		require.NotNil(t, member.User, "members should be listed with their profiles")
	}
}
