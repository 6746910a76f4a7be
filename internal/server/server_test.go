package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chattersphere/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func newAuthTestApp(s *Server) *fiber.App {
	app := fiber.New()
	app.Get("/api/whoami", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("userID").(uint)})
	})
	return app
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)
	s.config.JWTSecret = testJWTSecret
	app := newAuthTestApp(s)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	if body.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code, got %q", body.Code)
	}
}

func TestAuthRequiredRejectsBadSignature(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)
	s.config.JWTSecret = testJWTSecret
	app := newAuthTestApp(s)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "auth0|someone",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("a-different-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", resp.StatusCode)
	}
}

func TestAuthRequiredRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)
	s.config.JWTSecret = testJWTSecret
	app := newAuthTestApp(s)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "auth0|someone",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", resp.StatusCode)
	}
}

func TestAuthRequiredProvisionsOnFirstSight(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)
	s.config.JWTSecret = testJWTSecret
	app := newAuthTestApp(s)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                "auth0|abc123",
		"preferred_username": "newcomer",
		"name":               "New Comer",
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var user models.User
	if err := db.Where("external_id = ?", "auth0|abc123").First(&user).Error; err != nil {
		t.Fatalf("user should be provisioned on first sight: %v", err)
	}
	if user.Username != "newcomer" || user.Name != "New Comer" {
		t.Fatalf("provisioned profile mismatch: %+v", user)
	}

	// A second request resolves the same local user instead of creating another.
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", resp.StatusCode)
	}

	var count int64
	db.Model(&models.User{}).Where("external_id = ?", "auth0|abc123").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one local user, got %d", count)
	}
}

func TestAuthRequiredEnforcesIssuerWhenConfigured(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)
	s.config.JWTSecret = testJWTSecret
	s.config.JWTIssuer = "https://id.example.com/"
	app := newAuthTestApp(s)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "auth0|someone",
		"iss": "https://evil.example.net/",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong issuer, got %d", resp.StatusCode)
	}
}

func TestAdminRequired(t *testing.T) {
	t.Parallel()

	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db)

	admin := createTestUser(t, db, "admin", true)
	regular := createTestUser(t, db, "regular", false)

	actorID := regular.ID
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", actorID)
		return c.Next()
	})
	app.Get("/api/admin/ping", s.AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}

	actorID = admin.ID
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.StatusCode)
	}
}
