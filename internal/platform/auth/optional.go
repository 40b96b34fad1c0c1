package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// OptionalMiddleware resolves a session when a valid token is present and
// passes the request through unauthenticated otherwise. The public
// destinations use it: the route guard needs to know who is visiting the
// sign-in page, but must not reject anonymous visitors.
func OptionalMiddleware(issuer *TokenIssuer, resolver ProfileResolver, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearerToken(c)
			if tokenStr == "" {
				return next(c)
			}

			claims, err := issuer.Parse(tokenStr)
			if err != nil {
				return next(c)
			}
			userID, err := claims.SubjectID()
			if err != nil {
				return next(c)
			}

			ctx := c.Request().Context()
			sess, err := resolver.Resolve(ctx, userID, claims.Email)
			if err != nil {
				logger.Warn().Err(err).Str("user_id", userID.String()).Msg("profile resolution failed")
				sess = &Session{UserID: userID, Email: claims.Email, Warning: WarningProfileLoadFailed}
			}

			c.SetRequest(c.Request().WithContext(WithSession(ctx, sess)))
			return next(c)
		}
	}
}
