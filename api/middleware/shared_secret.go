package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/angelmondragon/chatshop/api/responses"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

const (
	// TelegramSecretHeader carries the secret registered with setWebhook.
	TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	// AdminTokenHeader carries the operator token on /admin routes.
	AdminTokenHeader = "X-Chatshop-Admin-Token"
)

// SharedSecret rejects requests whose header does not match secret. An
// empty secret disables the check.
func SharedSecret(header, secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(header))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, header+" mismatch"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
