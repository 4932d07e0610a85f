package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hugh/taskhub/internal/auth"
	"github.com/hugh/taskhub/internal/database"
	"github.com/hugh/taskhub/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the password every factory-built user can log in with.
const TestPassword = "testpassword123"

var seq atomic.Uint64

// passwordHash is computed once; bcrypt is slow enough to matter across a suite.
var passwordHash = func() string {
	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		panic(err)
	}
	return hash
}()

// SetupTestDB creates an in-memory SQLite database for testing. A single
// connection is kept open so every query sees the same in-memory database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := database.Close(db); err != nil {
		t.Logf("warning: failed to close test database: %v", err)
	}
}

func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name: fmt.Sprintf("Test Organization %d", seq.Add(1)),
	}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateTestUser creates a verified user with TestPassword and makes it a
// member of org with the given role.
func CreateTestUser(t *testing.T, db *gorm.DB, org *models.Organization, role string) *models.User {
	t.Helper()

	hash := passwordHash
	user := &models.User{
		Name:          "Test User",
		Email:         fmt.Sprintf("test-%d@example.com", seq.Add(1)),
		PasswordHash:  &hash,
		OrgID:         &org.ID,
		EmailVerified: true,
		AccessRole:    role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	CreateTestMembership(t, db, org.ID, user.ID, role)
	return user
}

func CreateTestMembership(t *testing.T, db *gorm.DB, orgID, userID uint, role string) *models.OrgMember {
	t.Helper()

	member := &models.OrgMember{OrgID: orgID, UserID: userID, Role: role}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to create test membership: %v", err)
	}
	return member
}

// MembershipFor loads the membership row linking userID to orgID.
func MembershipFor(t *testing.T, db *gorm.DB, orgID, userID uint) *models.OrgMember {
	t.Helper()

	var member models.OrgMember
	if err := db.Where("org_id = ? AND user_id = ?", orgID, userID).First(&member).Error; err != nil {
		t.Fatalf("failed to load membership: %v", err)
	}
	return &member
}

func CreateTestTask(t *testing.T, db *gorm.DB, orgMemberID uint, name string) *models.Task {
	t.Helper()

	task := &models.Task{
		Name:        name,
		OrgMemberID: orgMemberID,
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-31",
		Description: "Test task",
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	var orgID uint
	if user.OrgID != nil {
		orgID = *user.OrgID
	}

	token, err := jwtService.GenerateToken(user.ID, orgID, user.Email, user.AccessRole)
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

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Org        *models.Organization
	User       *models.User
	Member     *models.OrgMember
	Token      string
}

// NewTestContext creates a DB with one organization whose admin is User.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	org := CreateTestOrg(t, db)
	user := CreateTestUser(t, db, org, models.RoleAdmin)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Org:        org,
		User:       user,
		Member:     MembershipFor(t, db, org.ID, user.ID),
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		_ = database.Close(ts.DB)
	}
}
