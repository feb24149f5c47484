package providers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"tgmed/internal/structures"
	"tgmed/internal/telegram"
	"time"
)

type tgidKey struct{}

func WithTgID(ctx context.Context, tgid string) context.Context {
	return context.WithValue(ctx, tgidKey{}, tgid)
}

// TgIDFromContext returns the identity set by TelegramAuth.
func TgIDFromContext(ctx context.Context) (string, bool) {
	tgid, ok := ctx.Value(tgidKey{}).(string)
	return tgid, ok && tgid != ""
}

// TelegramAuth accepts only requests whose X-Telegram-InitData header is
// signed with the bot token and names a user.
func TelegramAuth(conf *structures.Config, logger Logger, metrics MetricsProviderInterface, next http.Handler) http.Handler {
	botToken := conf.Telegram.BotToken
	maxAge := conf.Telegram.InitDataMaxAge

	reject := func(w http.ResponseWriter, r *http.Request, reason, message string) {
		metrics.IncAuthFailures(reason)
		logger.Warnf(TypeAuth, "Rejected %s %s [%s]: %s", r.Method, r.URL.Path, requestIDOf(r), message)
		WriteJSONError(w, http.StatusUnauthorized, message)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(telegram.HeaderName)
		if raw == "" {
			reject(w, r, "missing", "Missing X-Telegram-InitData header")
			return
		}
		if !telegram.Verify(raw, botToken) {
			reject(w, r, "signature", "Invalid Telegram initData signature")
			return
		}

		data, err := telegram.Parse(raw)
		if err != nil {
			reject(w, r, "malformed", "Malformed Telegram initData")
			return
		}
		tgid, ok := data.TgID()
		if !ok {
			reject(w, r, "user", "Invalid user data in initData")
			return
		}
		if maxAge > 0 && (data.AuthDate.IsZero() || time.Since(data.AuthDate) > maxAge) {
			reject(w, r, "expired", "Telegram initData has expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTgID(r.Context(), tgid)))
	})
}

// CallbackAuth guards the pipeline callbacks with a shared secret. With no
// secret configured every callback is rejected.
func CallbackAuth(conf *structures.Config, logger Logger, metrics MetricsProviderInterface, next http.Handler) http.Handler {
	secret := []byte(conf.Webhook.CallbackSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(secret) == 0 {
			metrics.IncAuthFailures("callback_disabled")
			logger.Warnf(TypeAuth, "Callback %s rejected: no callback secret configured", r.URL.Path)
			WriteJSONError(w, http.StatusUnauthorized, "Callbacks are disabled")
			return
		}
		got := []byte(r.Header.Get("X-Webhook-Secret"))
		if subtle.ConstantTimeCompare(got, secret) != 1 {
			metrics.IncAuthFailures("callback_secret")
			logger.Warnf(TypeAuth, "Callback %s rejected [%s]: bad secret", r.URL.Path, requestIDOf(r))
			WriteJSONError(w, http.StatusUnauthorized, "Invalid webhook secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}
