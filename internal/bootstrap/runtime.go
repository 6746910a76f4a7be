package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"chattersphere/internal/cache"
	"chattersphere/internal/config"
	"chattersphere/internal/database"
	"chattersphere/internal/models"
	"chattersphere/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	SeedBuiltIns bool
}

// InitRuntime connects to DB and Redis and optionally runs built-in seeding.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	// Connect DB
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedBuiltIns {
		if err := seed.Communities(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed built-in communities: %w", err)
		}
	}

	return db, r, nil
}

// ensureDevRootAdmin guarantees a local admin account in development so
// moderation endpoints can be exercised without wiring a real identity
// provider. Accounts are otherwise provisioned lazily from provider
// tokens, so this is the only place a user is created directly.
func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("external_id = ?", "dev-root").First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				ExternalID: "dev-root",
				Username:   "root",
				Name:       "Root Admin",
				IsAdmin:    true,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
			log.Printf("development root admin created (user ID %d)", root.ID)
		case findErr != nil:
			return findErr
		default:
			if !root.IsAdmin {
				if err := tx.Model(&models.User{}).Where("id = ?", root.ID).Update("is_admin", true).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
