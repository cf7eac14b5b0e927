package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"fitness-progress-system/models"
	"fitness-progress-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestApp wires the full route surface in the same order main.go does,
// against a fresh in-memory sqlite database.
func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserProgress{},
		&models.ActivityEntry{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.BiometricSample{},
		&models.Goal{},
		&models.EngagementEvent{},
		&models.ProfileUser{},
	))

	eventService := services.NewEventService(db)
	badgeService := services.NewBadgeService(db, eventService)
	progressService := services.NewProgressService(db, eventService)
	progressService.Badges = badgeService
	activityService := services.NewActivityService(db)
	leaderboardService := services.NewLeaderboardService(db)

	// Auth service is never reached in these tests; requests that would hit
	// it fail earlier on missing query params.
	authClient := services.NewAuthServiceClient("http://127.0.0.1:1", "test-token")

	app := fiber.New()
	SetupProgressRoutes(app, progressService, badgeService, activityService, eventService, authClient)
	SetupLeaderboardRoutes(app, leaderboardService)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestLeaderboardIsPublicBehindGateway(t *testing.T) {
	app := setupTestApp(t)

	// No X-User-ID at all. The board must still answer.
	resp := doRequest(t, app, "GET", "/leaderboard", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSecuredRoutesRequireUserContext(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, "GET", "/s/user/progress", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, "GET", "/s/user/rank", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, "GET", "/s/user/progress", map[string]string{
		"X-User-ID": "user-ctx-1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSSEStreamUsesQueryTokenAuthNotUserContext(t *testing.T) {
	app := setupTestApp(t)

	// No X-User-ID header, no token. If the user-context middleware were
	// gating this route it would 401 before the SSE auth ever ran; the SSE
	// middleware's own missing-params response is a 400.
	resp := doRequest(t, app, "GET", "/user/events/stream", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	app := setupTestApp(t)

	resp := doRequest(t, app, "POST", "/s/admin/sweep", map[string]string{
		"X-User-ID":    "user-ctx-2",
		"X-User-Roles": "member",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "POST", "/s/admin/sweep", map[string]string{
		"X-User-ID":    "user-ctx-2",
		"X-User-Roles": "admin",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
