// Command main runs the database seeder for ChatterSphere.
package main

import (
	"flag"
	"log"

	"chattersphere/internal/config"
	"chattersphere/internal/database"
	"chattersphere/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 25, "Number of users to create")
	numCommunities := flag.Int("communities", 8, "Number of communities to create")
	postsPerUser := flag.Int("posts-per-user", 3, "Posts to create per user")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	flag.Parse()

	log.Println("Database Seeder")
	log.Println("===============")
	log.Printf("Target: %d users, %d communities, clean=%v\n", *numUsers, *numCommunities, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(database.DB, seed.SeedOptions{
		NumUsers:       *numUsers,
		NumCommunities: *numCommunities,
		PostsPerUser:   *postsPerUser,
		ShouldClean:    *shouldClean,
		DryRun:         *dryRun,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	// Built-ins go last so a clean run does not wipe them.
	if err := seed.Communities(database.DB); err != nil {
		log.Fatalf("Built-in community seeding failed: %v", err)
	}

	log.Println("All done! Your database is now populated with test data.")
}
