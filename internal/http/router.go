package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/SyncraLabs/aura/internal/http/handlers"
	"github.com/SyncraLabs/aura/internal/infra"
	"github.com/SyncraLabs/aura/internal/middleware"
)

// RouterOptions carries the cross-cutting settings for NewRouter.
type RouterOptions struct {
	Logger          infra.Logger
	JWT             middleware.JWTOptions
	CORSOrigins     []string
	RateLimitPerMin int
	// StaticDir, when set, is served under /static for the filesystem store.
	StaticDir string
}

func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	if opts.StaticDir != "" {
		r.Handle("/static/*", stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(opts.StaticDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWT))
		r.Get("/v1/transformations", app.ListTransformations)
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).
			Post("/v1/transformations", app.CreateTransformation)
		r.Post("/v1/onboarding", app.SaveOnboarding)
	})

	return r
}
