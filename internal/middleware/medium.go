package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"guru/internal/domain"
)

type mediumContextKey struct{}
type countryContextKey struct{}

var (
	MediumKey  = mediumContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup maps a client IP to an ISO 3166 country code.
type CountryLookup func(ip string) (string, error)

// Medium picks the medium of instruction for the request. The first hit wins:
// X-Medium, the highest weighted Accept-Language base we teach in, the client
// country (LK is Sinhala, anywhere else English), then defaultMedium.
func Medium(defaultMedium string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback := domain.NormalizeMedium(defaultMedium)
	if fallback == "" {
		fallback = domain.MediumSinhala
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			ctx := context.WithValue(r.Context(), MediumKey, detectMedium(r, fallback, country))
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectMedium(r *http.Request, fallback, country string) string {
	if m := domain.NormalizeMedium(r.Header.Get("X-Medium")); m != "" {
		return m
	}
	for _, tag := range acceptedTags(r) {
		base, _ := tag.Base()
		if m := domain.NormalizeMedium(base.String()); m != "" {
			return m
		}
	}
	switch {
	case strings.EqualFold(country, "LK"):
		return domain.MediumSinhala
	case country != "":
		return domain.MediumEnglish
	}
	if m := domain.NormalizeMedium(fallback); m != "" {
		return m
	}
	return domain.MediumSinhala
}

// acceptedTags returns Accept-Language tags ordered by weight. Malformed
// headers yield nothing.
func acceptedTags(r *http.Request) []language.Tag {
	raw := r.Header.Get("Accept-Language")
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil {
		return nil
	}
	return tags
}

func MediumFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(MediumKey).(string); ok {
		return v
	}
	return domain.MediumSinhala
}

func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry checks CDN country headers, then an explicit Accept-Language
// region, then the IP lookup. Lookup failures resolve to "".
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, h := range []string{"X-Country-Code", "CF-IPCountry"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return strings.ToUpper(v)
		}
	}
	for _, tag := range acceptedTags(r) {
		if region, conf := tag.Region(); conf == language.Exact {
			return region.String()
		}
	}
	if lookup == nil {
		return ""
	}
	ip := clientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(country))
}
