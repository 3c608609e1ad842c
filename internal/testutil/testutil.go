package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/auditbench/auditbench/internal/auth"
	"github.com/auditbench/auditbench/internal/database/models"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.User{},
		&models.Tool{},
		&models.Project{},
		&models.ProjectShare{},
		&models.ProjectNote{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// TestPassword is the plaintext behind every fixture user's hash.
const TestPassword = "Sup3rSecret!"

// CreateTestUser creates an active verified user
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, models.RoleUser)
}

// CreateTestAdmin creates an active admin user
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, models.RoleAdmin)
}

func createUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:          "Test User",
		Email:         "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash:  hash,
		Role:          role,
		IsActive:      true,
		EmailVerified: true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestTool creates an active public tool
func CreateTestTool(t *testing.T, db *gorm.DB) *models.Tool {
	t.Helper()

	tool := &models.Tool{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:          "Port Check " + uuid.New().String()[:8],
		Description:   "Checks open ports on a host",
		Category:      models.ToolCategoryNetwork,
		HTMLPath:      "/tools/port-check/index.html",
		AccessType:    models.ToolAccessIframe,
		IsActive:      true,
		IsPublic:      true,
		Version:       "1.0.0",
		Documentation: "Point it at a host and press go.",
		Configuration: `{"timeout_seconds": 5}`,
	}

	if err := db.Create(tool).Error; err != nil {
		t.Fatalf("failed to create test tool: %v", err)
	}

	return tool
}

// CreateTestProject creates a draft project owned by the given user
func CreateTestProject(t *testing.T, db *gorm.DB, owner *models.User, tool *models.Tool) *models.Project {
	t.Helper()

	project := &models.Project{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:          "Test Project " + uuid.New().String()[:8],
		OwnerID:       owner.ID,
		ToolID:        tool.ID,
		ToolType:      tool.Name,
		Status:        models.ProjectStatusDraft,
		Priority:      models.PriorityMedium,
		Results:       "{}",
		InputData:     "{}",
		Configuration: "{}",
	}

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}

	return project
}

// ShareTestProject grants a user access to a project
func ShareTestProject(t *testing.T, db *gorm.DB, project *models.Project, user *models.User, permission models.SharePermission) *models.ProjectShare {
	t.Helper()

	share := &models.ProjectShare{
		ProjectID:  project.ID,
		UserID:     user.ID,
		Permission: permission,
		SharedByID: project.OwnerID,
		SharedAt:   time.Now(),
	}

	if err := db.Create(share).Error; err != nil {
		t.Fatalf("failed to share test project: %v", err)
	}

	return share
}

// CreateTestTokenIssuer creates a token issuer with test secrets
func CreateTestTokenIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer(
		"test-access-secret",
		"test-refresh-secret",
		15*time.Minute,
		7*24*time.Hour,
	)
}

// GenerateTestToken issues a valid access token for the given user
func GenerateTestToken(t *testing.T, issuer *auth.TokenIssuer, user *models.User) string {
	t.Helper()

	token, err := issuer.IssueAccess(user.ID)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds the common test dependencies
type TestSetup struct {
	DB     *gorm.DB
	Tokens *auth.TokenIssuer
	User   *models.User
	Admin  *models.User
	Tool   *models.Tool
	Token  string
}

// NewTestContext creates a complete test setup with DB, users, a tool,
// and a valid access token for the regular user
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	tokens := CreateTestTokenIssuer()
	user := CreateTestUser(t, db)
	admin := CreateTestAdmin(t, db)
	tool := CreateTestTool(t, db)
	token := GenerateTestToken(t, tokens, user)

	return &TestSetup{
		DB:     db,
		Tokens: tokens,
		User:   user,
		Admin:  admin,
		Tool:   tool,
		Token:  token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
