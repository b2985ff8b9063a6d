package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/sketchroom/internal/present/rest/presenter"
)

var tracer = otel.Tracer("auth")

var (
	errMissingHeader = errors.New("missing authorization header")
	errNotBearer     = errors.New("only Bearer is acceptable")
	errBadToken      = errors.New("invalid admin token")
)

// AdminMiddleware guards operator endpoints with a static bearer token.
// With no token configured the guarded routes behave as if absent.
type AdminMiddleware struct {
	token string
}

func NewAdminMiddleware(token string) *AdminMiddleware {
	return &AdminMiddleware{token: token}
}

func (s *AdminMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Admin.Middleware.RequireAdmin")
		defer span.End()

		if s.token == "" {
			return presenter.NotFound(c, "not found")
		}

		err := s.check(c.Request().Header.Get("authorization"))
		if err != nil {
			span.RecordError(errors.Wrap(err, "AdminMiddleware.RequireAdmin"))
			span.SetAttributes(attribute.Bool("admin", false))
			return presenter.Unauthorized(c, err.Error())
		}
		span.SetAttributes(attribute.Bool("admin", true))

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *AdminMiddleware) check(authHeader string) error {
	if authHeader == "" {
		return errMissingHeader
	}
	split := strings.Split(authHeader, " ")
	if len(split) != 2 {
		return errMissingHeader
	}
	authType, token := split[0], split[1]
	if authType != "Bearer" {
		return errNotBearer
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return errBadToken
	}
	return nil
}
