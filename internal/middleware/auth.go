package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/fern/internal/context"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ReviewerClaims identify the person submitting judgements.
type ReviewerClaims struct {
	jwt.RegisteredClaims
	Name     string   `json:"name,omitempty"`
	Projects []string `json:"projects,omitempty"`
}

// AuthConfig configures bearer token checks.
type AuthConfig struct {
	Enabled bool
	Secret  []byte
	Issuer  string
}

// Auth verifies an HS256 bearer token and stores the reviewer on the
// context. A token listing projects may only act on those projects. When
// disabled, the X-Reviewer header is trusted instead.
func Auth(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			if !cfg.Enabled {
				if reviewer := req.Header.Get("X-Reviewer"); reviewer != "" {
					c.SetRequest(req.WithContext(context.SetReviewer(ctx, reviewer)))
				}
				return next(c)
			}

			header := req.Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return httperror.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := ParseReviewerToken(raw, cfg)
			if err != nil {
				return httperror.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			project := context.GetProject(ctx)
			if len(claims.Projects) > 0 && !contains(claims.Projects, project) {
				return httperror.NewHTTPError(http.StatusForbidden, fmt.Sprintf("no access to project %s", project))
			}

			reviewer := claims.Subject
			if claims.Name != "" {
				reviewer = claims.Name
			}
			c.SetRequest(req.WithContext(context.SetReviewer(ctx, reviewer)))
			return next(c)
		}
	}
}

// ParseReviewerToken validates signature, expiry and issuer of a token.
func ParseReviewerToken(raw string, cfg AuthConfig) (*ReviewerClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &ReviewerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
