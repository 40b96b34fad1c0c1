package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ProfileResolver maps an authenticated token identity to a session. The
// identity domain implements it against the users table. Implementations
// return a degraded session (role empty, Warning set) when the profile record
// is absent; a returned error means the read itself failed.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, email string) (*Session, error)
}

// Middleware authenticates the request and resolves the session profile.
// Exactly one resolution runs per request. A profile read failure degrades
// the session instead of rejecting the request.
func Middleware(issuer *TokenIssuer, resolver ProfileResolver, logger zerolog.Logger, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			tokenStr := bearerToken(c)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization token")
			}

			claims, err := issuer.Parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}
			userID, err := claims.SubjectID()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			ctx := c.Request().Context()
			sess, err := resolver.Resolve(ctx, userID, claims.Email)
			if err != nil {
				// Transport failure against the store: stay authenticated,
				// fall back to token identity with no role.
				logger.Warn().Err(err).Str("user_id", userID.String()).Msg("profile resolution failed")
				sess = &Session{UserID: userID, Email: claims.Email, Warning: WarningProfileLoadFailed}
			}

			c.SetRequest(c.Request().WithContext(WithSession(ctx, sess)))
			return next(c)
		}
	}
}

// bearerToken extracts the token from the Authorization header, falling back
// to the "token" query parameter for websocket upgrades, where browsers
// cannot set headers.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.QueryParam("token")
}
