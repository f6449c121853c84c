package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"guru/internal/http/handlers"
	"guru/internal/middleware"
)

// Options configures the router's middleware stack.
type Options struct {
	JWTSecret       string
	CORSOrigins     []string
	RateLimitPerMin int
	DefaultMedium   string
	CountryLookup   middleware.CountryLookup
	Logger          zerolog.Logger
	// FilesRoot serves locally stored slips under /files when set. Students
	// read their own slips; operators read all of them.
	FilesRoot string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", handlers.MetricsHandler())
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Use(middleware.Medium(opts.DefaultMedium, opts.CountryLookup))

		r.With(middleware.RateLimit(opts.RateLimitPerMin)).Post("/v1/chat", app.Chat)
		r.Get("/v1/me/entitlement", app.Entitlement)
		if root := strings.TrimSpace(opts.FilesRoot); root != "" {
			r.Handle("/files/*", http.StripPrefix("/files", app.SlipFiles(root)))
		}

		r.Route("/v1/payments", func(r chi.Router) {
			r.Get("/", app.PaymentsHistory)
			r.Post("/", app.PaymentsCreate)
			r.Get("/{id}", app.PaymentGet)
			r.Post("/{id}/evidence", app.PaymentEvidence)
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleOperator))
			r.Get("/payments", app.AdminPayments)
			r.Post("/payments/{id}/verify", app.AdminVerify)
			r.Post("/payments/{id}/decision", app.AdminDecision)
		})
	})

	return r
}
