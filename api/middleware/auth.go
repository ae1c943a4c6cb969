package middleware

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/qrcatalog-backend/api/responses"
	pkgAuth "github.com/angelmondragon/qrcatalog-backend/pkg/auth"
	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
)

// Auth requires an "Authorization: Bearer <jwt>" header and seeds the context with
// the caller's id, role and email.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="qrcatalog"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					msg = "token expired"
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="qrcatalog", error="invalid_token"`)
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			ctx := WithIdentity(r.Context(), claims.UserID, claims.Role, claims.Email)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID)
				ctx = logg.WithActorRole(ctx, claims.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
