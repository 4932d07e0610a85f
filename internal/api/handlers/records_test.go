package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/taskhub/internal/api/dto"
	"github.com/hugh/taskhub/internal/api/handlers"
	"github.com/hugh/taskhub/internal/api/middleware"
	"github.com/hugh/taskhub/internal/database/models"
	"github.com/hugh/taskhub/internal/membership"
	"github.com/hugh/taskhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRecordsTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)
	svc := membership.NewService(tc.DB)

	users := handlers.NewUserHandler(svc, nil)
	orgMembers := handlers.NewOrgMemberHandler(svc, nil)
	orgs := handlers.NewOrganizationHandler(svc, nil)
	tasks := handlers.NewTaskHandler(svc, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))

		r.Get("/users", users.List)
		r.Post("/users", users.Create)
		r.Put("/users/{id}", users.Update)
		r.Delete("/users/{id}", users.Delete)

		r.Get("/orgmembers", orgMembers.ByOrg)
		r.Get("/orgmember/byuser", orgMembers.ByUser)
		r.Get("/orgmember/byuserorg", orgMembers.ByUserAndOrg)

		r.Get("/user-organizations", orgs.ByUser)

		r.Post("/tasks", tasks.Create)
		r.Get("/tasks", tasks.List)
		r.Put("/tasks/{id}", tasks.Update)
		r.Delete("/tasks/{id}", tasks.Delete)
	})

	return r, tc
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// outsiderFixture adds a second org with its own admin, who shares nothing
// with the default fixture.
func outsiderFixture(t *testing.T, tc *testutil.TestSetup) (*models.Organization, *models.User, string) {
	t.Helper()
	org := testutil.CreateTestOrg(t, tc.DB)
	user := testutil.CreateTestUser(t, tc.DB, org, models.RoleAdmin)
	return org, user, testutil.GenerateTestToken(t, tc.JWTService, user)
}

func TestRecords_RequireAuth(t *testing.T) {
	router, tc := setupRecordsTestRouter(t)
	defer tc.Cleanup()

	rr := do(router, testutil.UnauthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/users?orgId=%d", tc.Org.ID), nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/users?orgId=%d", tc.Org.ID), nil, "garbage"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserHandler_List(t *testing.T) {
	router, tc := setupRecordsTestRouter(t)
	defer tc.Cleanup()

	member := testutil.CreateTestUser(t, tc.DB, tc.Org, models.RoleMember)
	_, _, outsiderToken := outsiderFixture(t, tc)

	rr := do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/users?orgId=%d", tc.Org.ID), nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var users []models.User
	testutil.ParseJSONResponse(t, rr, &users)
	require.Len(t, users, 2)
	assert.Equal(t, tc.User.ID, users[0].ID)
	assert.Equal(t, member.ID, users[1].ID)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/users?orgId=%d", tc.Org.ID), nil, outsiderToken))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/users", nil, tc.Token))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(router, testutil.AuthenticatedRequest(t, "GET", "/api/v1/users?orgId=abc", nil, tc.Token))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserHandler_Create(t *testing.T) {
	router, tc := setupRecordsTestRouter(t)
	defer tc.Cleanup()

	body := map[string]interface{}{"name": "Grace", "email": "grace@example.com", "orgId": tc.Org.ID}

	rr := do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/users", body, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var created dto.CreateUserResponse
	testutil.ParseJSONResponse(t, rr, &created)
	assert.True(t, created.Created)
	assert.Equal(t, "grace@example.com", created.User.Email)
	assert.Equal(t, tc.Org.ID, created.Membership.OrgID)

	// Same email, same org: no new rows.
	rr = do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/users", body, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var again dto.CreateUserResponse
	testutil.ParseJSONResponse(t, rr, &again)
	assert.False(t, again.Created)
	assert.Equal(t, created.Membership.ID, again.Membership.ID)

	t.Run("member cannot add users", func(t *testing.T) {
		member := testutil.CreateTestUser(t, tc.DB, tc.Org, models.RoleMember)
		token := testutil.GenerateTestToken(t, tc.JWTService, member)
		rr := do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/users",
			map[string]interface{}{"name": "Eve", "email": "eve@example.com", "orgId": tc.Org.ID}, token))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unknown org", func(t *testing.T) {
		rr := do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/users",
			map[string]interface{}{"name": "Eve", "email": "eve@example.com", "orgId": tc.Org.ID + 100}, tc.Token))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing orgId", func(t *testing.T) {
		rr := do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/users",
			map[string]interface{}{"name": "Eve", "email": "eve@example.com"}, tc.Token))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUserHandler_UpdateAndDelete(t *testing.T) {
	router, tc := setupRecordsTestRouter(t)
	defer tc.Cleanup()

	member := testutil.CreateTestUser(t, tc.DB, tc.Org, models.RoleMember)
	memberToken := testutil.GenerateTestToken(t, tc.JWTService, member)
	_, outsider, outsiderToken := outsiderFixture(t, tc)

	path := fmt.Sprintf("/api/v1/users/%d", member.ID)

	tests := []struct {
		name       string
		path       string
		token      string
		body       map[string]string
		wantStatus int
	}{
		{"self update", path, memberToken, map[string]string{"name": "Me", "email": "me@example.com"}, http.StatusOK},
		{"admin of shared org", path, tc.Token, map[string]string{"name": "Them", "email": "them@example.com"}, http.StatusOK},
		{"outsider", path, outsiderToken, map[string]string{"name": "X", "email": "x@example.com"}, http.StatusForbidden},
		{"member editing admin", fmt.Sprintf("/api/v1/users/%d", tc.User.ID), memberToken, map[string]string{"name": "X", "email": "x@example.com"}, http.StatusForbidden},
		{"duplicate email", path, memberToken, map[string]string{"name": "Me", "email": outsider.Email}, http.StatusConflict},
		{"unknown user", "/api/v1/users/9999", tc.Token, map[string]string{"name": "X", "email": "x@example.com"}, http.StatusNotFound},
		{"bad id", "/api/v1/users/abc", tc.Token, map[string]string{"name": "X", "email": "x@example.com"}, http.StatusBadRequest},
		{"missing fields", path, memberToken, map[string]string{"name": ""}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(router, testutil.AuthenticatedRequest(t, "PUT", tt.path, tt.body, tt.token))
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}

	var updated models.User
	require.NoError(t, tc.DB.First(&updated, member.ID).Error)
	assert.Equal(t, "them@example.com", updated.Email)

	rr := do(router, testutil.AuthenticatedRequest(t, "DELETE", path, nil, outsiderToken))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, testutil.AuthenticatedRequest(t, "DELETE", path, nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "User deleted successfully")

	rr = do(router, testutil.AuthenticatedRequest(t, "DELETE", path, nil, tc.Token))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOrgMemberHandler(t *testing.T) {
	router, tc := setupRecordsTestRouter(t)
	defer tc.Cleanup()

	member := testutil.CreateTestUser(t, tc.DB, tc.Org, models.RoleMember)
	memberToken := testutil.GenerateTestToken(t, tc.JWTService, member)
	otherOrg, _, outsiderToken := outsiderFixture(t, tc)
	// The fixture admin also joins the outsider's org; the plain member does not.
	testutil.CreateTestMembership(t, tc.DB, otherOrg.ID, tc.User.ID, models.RoleMember)

	t.Run("by org", func(t *testing.T) {
		rr := do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/orgmembers?orgId=%d", tc.Org.ID), nil, memberToken))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var members []models.OrgMember
		testutil.ParseJSONResponse(t, rr, &members)
		assert.Len(t, members, 2)

		rr = do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/orgmembers?orgId=%d", otherOrg.ID), nil, memberToken))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("by user sees own memberships", func(t *testing.T) {
		rr := do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/orgmember/byuser?userId=%d", tc.User.ID), nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var members []models.OrgMember
		testutil.ParseJSONResponse(t, rr, &members)
		assert.Len(t, members, 2)
	})

	t.Run("by user filtered to shared orgs", func(t *testing.T) {
		rr := do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/orgmember/byuser?userId=%d", tc.User.ID), nil, memberToken))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var members []models.OrgMember
		testutil.ParseJSONResponse(t, rr, &members)
		require.Len(t, members, 1)
		assert.Equal(t, tc.Org.ID, members[0].OrgID)
	})

	t.Run("by user with nothing shared", func(t *testing.T) {
		rr := do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/orgmember/byuser?userId=%d", member.ID), nil, outsiderToken))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("by user and org", func(t *testing.T) {
		rr := do(router, testutil.AuthenticatedRequest(t, "GET",
			fmt.Sprintf("/api/v1/orgmember/byuserorg?userId=%d&orgId=%d", member.ID, tc.Org.ID), nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var m models.OrgMember
		testutil.ParseJSONResponse(t, rr, &m)
		assert.Equal(t, member.ID, m.UserID)
		assert.Equal(t, models.RoleMember, m.Role)

		rr = do(router, testutil.AuthenticatedRequest(t, "GET",
			fmt.Sprintf("/api/v1/orgmember/byuserorg?userId=%d&orgId=%d", member.ID, otherOrg.ID), nil, tc.Token))
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = do(router, testutil.AuthenticatedRequest(t, "GET",
			fmt.Sprintf("/api/v1/orgmember/byuserorg?userId=%d", member.ID), nil, tc.Token))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestOrganizationHandler_ByUser(t *testing.T) {
	router, tc := setupRecordsTestRouter(t)
	defer tc.Cleanup()

	second := testutil.CreateTestOrg(t, tc.DB)
	testutil.CreateTestMembership(t, tc.DB, second.ID, tc.User.ID, models.RoleMember)
	member := testutil.CreateTestUser(t, tc.DB, tc.Org, models.RoleMember)

	rr := do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/user-organizations?userId=%d", tc.User.ID), nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var orgs []models.Organization
	testutil.ParseJSONResponse(t, rr, &orgs)
	require.Len(t, orgs, 2)
	assert.Equal(t, tc.Org.ID, orgs[0].ID)
	assert.Equal(t, second.ID, orgs[1].ID)

	rr = do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/user-organizations?userId=%d", member.ID), nil, tc.Token))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestTaskHandler_Lifecycle(t *testing.T) {
	router, tc := setupRecordsTestRouter(t)
	defer tc.Cleanup()

	body := map[string]interface{}{
		"name":          "Write report",
		"org_member_id": tc.Member.ID,
		"start_date":    "2024-05-01",
		"end_date":      "2024-05-10",
	}

	rr := do(router, testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks", body, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var task models.Task
	testutil.ParseJSONResponse(t, rr, &task)
	require.NotZero(t, task.ID)
	assert.Equal(t, "Write report", task.Name)

	rr = do(router, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/tasks?orgId=%d", tc.Org.ID), nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var tasks []models.Task
	testutil.ParseJSONResponse(t, rr, &tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	// Full replace: omitted description is cleared.
	body["name"] = "Write final report"
	body["end_date"] = "2024-05-12"
	rr = do(router, testutil.AuthenticatedRequest(t, "PUT", fmt.Sprintf("/api/v1/tasks/%d", task.ID), body, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var updated models.Task
	testutil.ParseJSONResponse(t, rr, &updated)
	assert.Equal(t, "Write final report", updated.Name)
	assert.Equal(t, "2024-05-12", updated.EndDate)
	assert.Empty(t, updated.Description)

	rr = do(router, testutil.AuthenticatedRequest(t, "DELETE", fmt.Sprintf("/api/v1/tasks/%d", task.ID), nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var msg dto.SuccessResponse
	testutil.ParseJSONResponse(t, rr, &msg)
	assert.Equal(t, "Task deleted successfully", msg.Message)

	rr = do(router, testutil.AuthenticatedRequest(t, "DELETE", fmt.Sprintf("/api/v1/tasks/%d", task.ID), nil, tc.Token))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTaskHandler_Errors(t *testing.T) {
	router, tc := setupRecordsTestRouter(t)
	defer tc.Cleanup()

	otherOrg, outsider, outsiderToken := outsiderFixture(t, tc)
	outsiderMember := testutil.MembershipFor(t, tc.DB, otherOrg.ID, outsider.ID)
	mine := testutil.CreateTestTask(t, tc.DB, tc.Member.ID, "mine")

	valid := func(memberID uint) map[string]interface{} {
		return map[string]interface{}{
			"name":          "T",
			"org_member_id": memberID,
			"start_date":    "2024-01-01",
			"end_date":      "2024-01-02",
		}
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		token      string
		wantStatus int
	}{
		{"create for unknown membership", "POST", "/api/v1/tasks", valid(9999), tc.Token, http.StatusNotFound},
		{"create in foreign org", "POST", "/api/v1/tasks", valid(outsiderMember.ID), tc.Token, http.StatusForbidden},
		{"create with end before start", "POST", "/api/v1/tasks", map[string]interface{}{
			"name": "T", "org_member_id": tc.Member.ID, "start_date": "2024-02-01", "end_date": "2024-01-01",
		}, tc.Token, http.StatusBadRequest},
		{"create with bad date", "POST", "/api/v1/tasks", map[string]interface{}{
			"name": "T", "org_member_id": tc.Member.ID, "start_date": "2024-13-01", "end_date": "2024-12-01",
		}, tc.Token, http.StatusBadRequest},
		{"list foreign org", "GET", fmt.Sprintf("/api/v1/tasks?orgId=%d", otherOrg.ID), nil, tc.Token, http.StatusForbidden},
		{"list without orgId", "GET", "/api/v1/tasks", nil, tc.Token, http.StatusBadRequest},
		{"update unknown task", "PUT", "/api/v1/tasks/9999", valid(tc.Member.ID), tc.Token, http.StatusNotFound},
		{"update by outsider", "PUT", fmt.Sprintf("/api/v1/tasks/%d", mine.ID), valid(outsiderMember.ID), outsiderToken, http.StatusForbidden},
		{"move into foreign org", "PUT", fmt.Sprintf("/api/v1/tasks/%d", mine.ID), valid(outsiderMember.ID), tc.Token, http.StatusForbidden},
		{"delete by outsider", "DELETE", fmt.Sprintf("/api/v1/tasks/%d", mine.ID), nil, outsiderToken, http.StatusForbidden},
		{"delete bad id", "DELETE", "/api/v1/tasks/0", nil, tc.Token, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(router, testutil.AuthenticatedRequest(t, tt.method, tt.path, tt.body, tt.token))
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}

	var still models.Task
	require.NoError(t, tc.DB.First(&still, mine.ID).Error)
	assert.Equal(t, "mine", still.Name)
}
