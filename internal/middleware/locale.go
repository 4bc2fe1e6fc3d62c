package middleware

import (
	"context"
	"net/http"

	"github.com/soaringjerry/checkbot/internal/utils"
)

type ctxKey int

const localeKey ctxKey = 1

const defaultLocale = "en"

// Locale picks one of utils.SupportedLocales for each request, preferring the
// lang query parameter over Accept-Language, and echoes it as
// Content-Language.
func Locale(fallback string) func(http.Handler) http.Handler {
	if fallback == "" {
		fallback = defaultLocale
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := utils.DetermineLocale(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), utils.SupportedLocales, fallback)
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
		})
	}
}

func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey, locale)
}

// LocaleFromContext returns the request locale, or "en" outside Locale.
func LocaleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(localeKey).(string); ok && s != "" {
		return s
	}
	return defaultLocale
}
