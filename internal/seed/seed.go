// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"chattersphere/internal/models"

	"gorm.io/gorm"
)

// SeedOptions configuration for the seeder.
type SeedOptions struct {
	NumUsers       int
	NumCommunities int
	PostsPerUser   int
	ShouldClean    bool
	DryRun         bool
	// MaxDays bounds how far back generated content is dated.
	MaxDays int
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9-]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugCleaner.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	if len(s) > 24 {
		s = s[:24]
	}
	if len(s) < 3 {
		s = s + "-hub"
	}
	return s
}

// Seed populates the database with demo users, communities, memberships,
// pending requests, posts, and comments.
func Seed(db *gorm.DB, opts SeedOptions) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 25
	}
	if opts.NumCommunities <= 0 {
		opts.NumCommunities = 8
	}
	if opts.PostsPerUser <= 0 {
		opts.PostsPerUser = 3
	}

	log.Printf("Starting database seeding with %d users and %d communities...", opts.NumUsers, opts.NumCommunities)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	factory := NewFactory(db, opts)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, user)
	}
	log.Printf("Created %d users", len(users))

	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	communities := make([]*models.Community, 0, opts.NumCommunities)
	for i := 0; i < opts.NumCommunities; i++ {
		creator := users[r.Intn(len(users))]
		community, err := factory.CreateCommunity(creator, func(c *models.Community) {
			// roughly a third of demo communities gate joins on approval
			c.RequiresApproval = i%3 == 0
			c.IsPrivate = i%5 == 0
		})
		if err != nil {
			return fmt.Errorf("failed to create community: %w", err)
		}
		communities = append(communities, community)
	}
	log.Printf("Created %d communities", len(communities))

	// Spread memberships and a few pending requests across communities.
	for _, user := range users {
		joins := 1 + r.Intn(3)
		for j := 0; j < joins; j++ {
			community := communities[r.Intn(len(communities))]
			if community.CreatorID != nil && *community.CreatorID == user.ID {
				continue
			}
			if community.RequiresApproval && r.Intn(2) == 0 {
				if _, err := factory.CreateMembershipRequest(community, user); err != nil {
					return fmt.Errorf("failed to create membership request: %w", err)
				}
				continue
			}
			role := models.CommunityRoleMember
			if r.Intn(10) == 0 {
				role = models.CommunityRoleModerator
			}
			if err := factory.CreateMembership(community, user, role); err != nil {
				return fmt.Errorf("failed to create membership: %w", err)
			}
		}
	}
	log.Println("Created memberships and pending requests")

	if !opts.DryRun {
		totalPosts := 0
		for _, user := range users {
			for p := 0; p < opts.PostsPerUser; p++ {
				community := communities[r.Intn(len(communities))]
				post, err := factory.CreatePost(user, community)
				if err != nil {
					return fmt.Errorf("failed to create post: %w", err)
				}
				totalPosts++

				comments := r.Intn(4)
				for c := 0; c < comments; c++ {
					commenter := users[r.Intn(len(users))]
					if _, err := factory.CreateComment(commenter, post); err != nil {
						return fmt.Errorf("failed to create comment: %w", err)
					}
				}
			}
		}
		log.Printf("Created %d posts", totalPosts)
	}

	log.Println("Database seeding completed")
	return nil
}

func clearData(db *gorm.DB) error {
	tables := []string{
		"notifications",
		"comments",
		"posts",
		"membership_requests",
		"community_members",
		"channels",
		"communities",
		"users",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
