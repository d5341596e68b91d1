package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	"github.com/EchoAurora/xingcefupan/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testServices bundles the mocks behind one router instance.
type testServices struct {
	user     *MockUserService
	exam     *MockExamService
	strategy *MockStrategyService
	checkin  *MockCheckinService
	review   *MockReviewService
	email    *MockEmailService
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			SessionSecret: "test-session-secret",
			Debug:         true,
			CORSOrigins:   []string{"http://localhost:3000"},
		},
	}
}

// newTestRouter builds the full router with mocked storage services and the
// real pure engines (diagnostics, planner).
func newTestRouter(t *testing.T) (*gin.Engine, *testServices) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	svcs := &testServices{
		user:     new(MockUserService),
		exam:     new(MockExamService),
		strategy: new(MockStrategyService),
		checkin:  new(MockCheckinService),
		review:   new(MockReviewService),
		email:    new(MockEmailService),
	}

	diagnostics := services.NewDiagnosticsServiceWithLogger(cfg, logger)
	planner := services.NewPlannerServiceWithLogger(cfg, logger)

	router := NewRouter(
		cfg,
		svcs.user,
		svcs.exam,
		diagnostics,
		planner,
		svcs.checkin,
		svcs.review,
		svcs.strategy,
		svcs.email,
		logger,
	)
	return router, svcs
}

// testUser is the default authenticated user used by handler tests.
func testUser() *models.User {
	return &models.User{
		ID:       7,
		Username: "shenlun",
	}
}

// loginSession authenticates against the router and returns the session
// cookies for follow-up requests.
func loginSession(t *testing.T, router *gin.Engine, svcs *testServices) []*http.Cookie {
	t.Helper()

	user := testUser()
	svcs.user.On("AuthenticateUser", mock.Anything, user.Username, "password123").Return(user, nil).Once()
	svcs.user.On("UpdateLastActive", mock.Anything, user.ID).Return(nil).Once()

	w := performJSON(router, http.MethodPost, "/v1/auth/login", map[string]interface{}{
		"username": user.Username,
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

// performJSON issues a request with an optional JSON body and session cookies.
func performJSON(router *gin.Engine, method, path string, body interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeBody unmarshals a response body into a generic map.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
