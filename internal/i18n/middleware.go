package i18n

import "net/http"

// Middleware picks a localizer per request from the lang query parameter and
// the Accept-Language header, falling back to the default language.
func (c *Catalog) Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := c.Localizer(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), defaultLang)
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
