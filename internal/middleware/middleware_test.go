package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func sign(t *testing.T, claims ReviewerClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func newServer(auth AuthConfig) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	e.Use(Context("default"), Auth(auth))
	e.GET("/whoami", func(c echo.Context) error {
		ctx := c.Request().Context()
		return c.JSON(http.StatusOK, map[string]string{
			"project":  context.GetProject(ctx),
			"reviewer": context.GetReviewer(ctx),
		})
	})
	e.GET("/invalid", func(c echo.Context) error {
		return models.NewValidationError("uid", "uid is required")
	})
	return e
}

func TestAuth(t *testing.T) {
	cfg := AuthConfig{Enabled: true, Secret: secret, Issuer: "fern"}
	valid := ReviewerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "r-1",
			Issuer:    "fern",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:     "alice",
		Projects: []string{"default", "panama"},
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	wrongIssuer := valid
	wrongIssuer.Issuer = "other"

	tests := []struct {
		name     string
		header   string
		project  string
		status   int
		reviewer string
	}{
		{name: "valid token", header: "Bearer " + sign(t, valid), status: http.StatusOK, reviewer: "alice"},
		{name: "allowed project", header: "Bearer " + sign(t, valid), project: "panama", status: http.StatusOK, reviewer: "alice"},
		{name: "forbidden project", header: "Bearer " + sign(t, valid), project: "secret", status: http.StatusForbidden},
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + sign(t, expired), status: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + sign(t, wrongIssuer), status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc.def.ghi", status: http.StatusUnauthorized},
	}

	e := newServer(cfg)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.project != "" {
				req.Header.Set(HeaderProject, tt.project)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.reviewer != "" {
				assert.Contains(t, rec.Body.String(), `"reviewer":"`+tt.reviewer+`"`)
			}
		})
	}
}

func TestAuth_Disabled(t *testing.T) {
	e := newServer(AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Reviewer", "bob")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reviewer":"bob"`)
	assert.Contains(t, rec.Body.String(), `"project":"default"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestError_ValidationIsBadRequest(t *testing.T) {
	e := newServer(AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/invalid", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "uid is required")
}
