// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"chattersphere/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		ExternalID: "seed|" + gofakeit.UUID(),
		Username:   gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Name:       gofakeit.Name(),
		Bio:        gofakeit.Sentence(10),
		Avatar:     fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s (%s)", user.Username, user.ExternalID)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateCommunity constructs and persists a community with the given creator,
// the creator membership row, and a default "general" channel.
func (f *Factory) CreateCommunity(creator *models.User, overrides ...func(*models.Community)) (*models.Community, error) {
	noun := gofakeit.NounAbstract()
	community := &models.Community{
		Name:        gofakeit.HackerAdjective() + " " + noun,
		Slug:        slugify(noun + fmt.Sprintf("-%d", gofakeit.Number(100, 999))),
		Description: gofakeit.Sentence(12),
		Image:       fmt.Sprintf("https://picsum.photos/seed/%s/400/400", gofakeit.UUID()),
		CreatorID:   &creator.ID,
	}

	for _, override := range overrides {
		override(community)
	}

	if f.opts.DryRun {
		f.nextID++
		community.ID = f.nextID
		log.Printf("[dry-run] CreateCommunity: %s (%s)", community.Name, community.Slug)
		return community, nil
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(community).Error; err != nil {
			return err
		}
		member := models.CommunityMember{
			CommunityID: community.ID,
			UserID:      creator.ID,
			Role:        models.CommunityRoleCreator,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		channel := models.Channel{
			CommunityID: community.ID,
			Name:        "general",
			Description: "General discussion",
			CreatedBy:   creator.ID,
		}
		return tx.Create(&channel).Error
	})
	if err != nil {
		return nil, err
	}
	return community, nil
}

// CreateMembership persists a membership row with the given role. Duplicate
// pairs are ignored so presets can over-generate without bookkeeping.
func (f *Factory) CreateMembership(community *models.Community, user *models.User, role models.CommunityRole) error {
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateMembership: community=%d user=%d role=%s", community.ID, user.ID, role)
		return nil
	}
	member := models.CommunityMember{
		CommunityID: community.ID,
		UserID:      user.ID,
		Role:        role,
	}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

// CreateMembershipRequest persists a pending join request.
func (f *Factory) CreateMembershipRequest(community *models.Community, user *models.User) (*models.MembershipRequest, error) {
	request := &models.MembershipRequest{
		CommunityID: community.ID,
		UserID:      user.ID,
		Message:     gofakeit.Sentence(8),
	}
	if f.opts.DryRun {
		f.nextID++
		request.ID = f.nextID
		log.Printf("[dry-run] CreateMembershipRequest: community=%d user=%d", community.ID, user.ID)
		return request, nil
	}
	if err := f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// CreatePost constructs and persists a sample `models.Post` in the community.
func (f *Factory) CreatePost(user *models.User, community *models.Community, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		Title:       gofakeit.Sentence(5),
		Content:     gofakeit.Paragraph(1, 3, 5, "\n"),
		UserID:      user.ID,
		CommunityID: &community.ID,
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID()),
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)

	for _, override := range overrides {
		override(post)
	}

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		log.Printf("[dry-run] CreatePost: user=%d community=%d title=%q", post.UserID, community.ID, post.Title)
		return post, nil
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment constructs and persists a sample `models.Comment` on the
// provided post authored by the provided user.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content: gofakeit.Sentence(8),
		UserID:  user.ID,
		PostID:  post.ID,
	}

	for _, override := range overrides {
		override(comment)
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}
