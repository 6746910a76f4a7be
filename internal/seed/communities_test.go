package seed

import (
	"testing"

	"chattersphere/internal/models"
	"chattersphere/internal/validation"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Community{},
		&models.CommunityMember{},
		&models.MembershipRequest{},
		&models.Channel{},
		&models.Post{},
		&models.Comment{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCommunities_Idempotent(t *testing.T) {
	t.Parallel()

	db := setupSeedTestDB(t)

	if err := Communities(db); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := Communities(db); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var communityCount int64
	if err := db.Model(&models.Community{}).Count(&communityCount).Error; err != nil {
		t.Fatalf("count communities: %v", err)
	}
	if communityCount != int64(len(BuiltInCommunities)) {
		t.Fatalf("expected %d communities, got %d", len(BuiltInCommunities), communityCount)
	}

	for _, item := range BuiltInCommunities {
		var community models.Community
		if err := db.Where("slug = ?", item.Slug).First(&community).Error; err != nil {
			t.Fatalf("missing community %s: %v", item.Slug, err)
		}

		var channel models.Channel
		if err := db.Where("community_id = ? AND name = ?", community.ID, "general").First(&channel).Error; err != nil {
			t.Fatalf("missing general channel for %s: %v", item.Slug, err)
		}
	}
}

func TestSeedPopulatesSocialGraph(t *testing.T) {
	t.Parallel()

	db := setupSeedTestDB(t)

	opts := SeedOptions{NumUsers: 6, NumCommunities: 3, PostsPerUser: 2, ShouldClean: true}
	if err := Seed(db, opts); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var users int64
	db.Model(&models.User{}).Count(&users)
	if users != 6 {
		t.Fatalf("expected 6 users, got %d", users)
	}

	var communities int64
	db.Model(&models.Community{}).Count(&communities)
	if communities != 3 {
		t.Fatalf("expected 3 communities, got %d", communities)
	}

	// Every community carries its creator membership and a general channel.
	var communityList []models.Community
	if err := db.Find(&communityList).Error; err != nil {
		t.Fatalf("list communities: %v", err)
	}
	for _, community := range communityList {
		var creatorRows int64
		db.Model(&models.CommunityMember{}).
			Where("community_id = ? AND role = ?", community.ID, models.CommunityRoleCreator).
			Count(&creatorRows)
		if creatorRows != 1 {
			t.Fatalf("community %s should have exactly one creator, got %d", community.Slug, creatorRows)
		}
	}

	var posts int64
	db.Model(&models.Post{}).Count(&posts)
	if posts == 0 {
		t.Fatal("expected seeded posts")
	}

	// Requests only exist against approval-gated communities.
	var requests []models.MembershipRequest
	if err := db.Find(&requests).Error; err != nil {
		t.Fatalf("list requests: %v", err)
	}
	for _, request := range requests {
		var community models.Community
		if err := db.First(&community, request.CommunityID).Error; err != nil {
			t.Fatalf("request community: %v", err)
		}
		if !community.RequiresApproval {
			t.Fatalf("request against non-gated community %s", community.Slug)
		}
	}
}

func TestSeedDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	db := setupSeedTestDB(t)

	opts := SeedOptions{NumUsers: 4, NumCommunities: 2, PostsPerUser: 1, DryRun: true}
	if err := Seed(db, opts); err != nil {
		t.Fatalf("dry run: %v", err)
	}

	var users int64
	db.Model(&models.User{}).Count(&users)
	var communities int64
	db.Model(&models.Community{}).Count(&communities)
	if users != 0 || communities != 0 {
		t.Fatalf("dry run must not write, got %d users and %d communities", users, communities)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Retro Gaming", "retro-gaming"},
		{"  Mixed CASE  ", "mixed-case"},
	}
	for _, tt := range tests {
		got := slugify(tt.in)
		if got != tt.want {
			t.Fatalf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if err := validation.ValidateCommunitySlug(got); err != nil {
			t.Fatalf("slugify(%q) produced invalid slug %q: %v", tt.in, got, err)
		}
	}
}
