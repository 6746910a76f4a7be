// Package validation contains input validation helpers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var communitySlugRegex = regexp.MustCompile(`^[a-z0-9-]{3,24}$`)

var reservedCommunitySlugs = map[string]struct{}{
	"admin":         {},
	"api":           {},
	"auth":          {},
	"c":             {},
	"channels":      {},
	"comments":      {},
	"communities":   {},
	"login":         {},
	"logout":        {},
	"messages":      {},
	"metrics":       {},
	"notifications": {},
	"posts":         {},
	"settings":      {},
	"signup":        {},
	"users":         {},
	"ws":            {},
}

// ValidateCommunitySlug validates community slug format and reserved names.
func ValidateCommunitySlug(slug string) error {
	if !communitySlugRegex.MatchString(slug) {
		return fmt.Errorf("slug must be 3-24 characters and contain only lowercase letters, numbers, and hyphens")
	}

	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return fmt.Errorf("slug cannot start or end with a hyphen")
	}

	if _, exists := reservedCommunitySlugs[slug]; exists {
		return fmt.Errorf("slug is reserved")
	}

	return nil
}
