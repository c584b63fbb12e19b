// Package middlewarectx содержит HTTP middleware API: CORS, проверку доступа
// администратора, ограничение частоты запросов и перехват паник.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/password"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// Admin ключ способа аутентификации администратора в контексте ("secret" или "session").
	Admin Key = "admin"
)

// Заголовки, в которых админка передаёт учётные данные.
const (
	HeaderAdminPassword = "X-Admin-Password"
	HeaderAdminKey      = "X-Admin-Key"
	HeaderAdminToken    = "X-Admin-Token"
)

// SessionValidator проверяет токен сессии администратора.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*jwt.SessionClaims, error)
}

// AdminAuth пропускает запрос, если передан общий секрет (X-Admin-Password или
// X-Admin-Key) либо действующий токен сессии (X-Admin-Token или Bearer).
// При пустом secret вход возможен только по токену.
func AdminAuth(log *slog.Logger, secret string, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AdminAuth"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if secret != "" {
				for _, h := range []string{HeaderAdminPassword, HeaderAdminKey} {
					if v := r.Header.Get(h); v != "" && password.EqualSecret(secret, v) {
						next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), Admin, "secret")))
						return
					}
				}
			}

			if token := sessionToken(r); token != "" && sessions != nil {
				_, err := sessions.Validate(r.Context(), token)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), Admin, "session")))
					return
				}
				log.Warn("admin session rejected", sl.Err(err))
			}

			log.Warn("admin access denied", slog.String("ip", ClientIP(r)))
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
		})
	}
}

func sessionToken(r *http.Request) string {
	if t := r.Header.Get(HeaderAdminToken); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
