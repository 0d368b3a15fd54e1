package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	auth2 "github.com/go-pkgz/auth/v2"
	"github.com/icco/gutil/logging"
	"github.com/jonboulle/clockwork"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/unrolled/render"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/icco/minesduel"
	"github.com/icco/minesduel/cmd/server/docs"
	"github.com/icco/minesduel/match"
	"github.com/icco/minesduel/ranking"
	"github.com/icco/minesduel/store"
)

var (
	// Renderer is a renderer for all occasions. These are our preferred default options.
	// See:
	//  - https://github.com/unrolled/render/blob/v1/README.md
	Renderer = render.New(render.Options{
		Charset:                   "UTF-8",
		DisableHTTPErrorRendering: false,
		IndentJSON:                false,
	})

	log       = logging.Must(logging.NewLogger(minesduel.Service))
	ugcPolicy = bluemonday.StrictPolicy()
)

// @title Minesduel API
// @version 1.0
// @description Head-to-head minesweeper matches: create, join, ready up, log steps, report outcomes and rankings.
// @contact.name API Support
// @contact.url http://github.com/icco/minesduel
// @license.name MIT
// @license.url https://github.com/icco/minesduel/blob/main/LICENSE
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token in format: Bearer {token}

type server struct {
	cfg     *config
	store   *store.Store
	matches *match.Coordinator
	ranks   *ranking.Service
	auth    *auth2.Service
	metrics http.Handler
}

func newServer(cfg *config, db *store.Store, clock clockwork.Clock, metrics http.Handler) *server {
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	return &server{
		cfg:   cfg,
		store: db,
		matches: match.New(db, match.Options{
			Clock:      clock,
			Logger:     log,
			StartDelay: cfg.StartDelay,
		}),
		ranks:   ranking.New(db),
		auth:    newAuthService(cfg),
		metrics: metrics,
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalw("could not load config", zap.Error(err))
	}

	metrics, provider, err := setupMetrics()
	if err != nil {
		log.Fatalw("could not set up metrics", zap.Error(err))
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.Errorw("could not shut down meter provider", zap.Error(err))
		}
	}()

	db, err := store.Open(cfg.DatabaseURL, log.Desugar())
	if err != nil {
		log.Fatalw("could not get db", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorw("could not close db", zap.Error(err))
		}
	}()

	s := newServer(cfg, db, clockwork.NewRealClock(), metrics)

	log.Infow("Starting up", "host", fmt.Sprintf("http://localhost:%s", cfg.Port), "production", cfg.Production)
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        otelhttp.NewHandler(s.router(), minesduel.Service),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorw("server stopped", zap.Error(err))
	}
}

func (s *server) router() http.Handler {
	isDev := !s.cfg.Production

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(log.Desugar(), minesduel.GCPProject))

	r.Use(cors.New(cors.Options{
		AllowCredentials:   true,
		OptionsPassthrough: false,
		AllowedOrigins:     s.cfg.CORSOrigins,
		AllowedMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:     []string{"Link"},
		MaxAge:             300, // Maximum value not ignored by any of major browsers
	}).Handler)

	r.NotFound(notFoundHandler)

	// Probes and scrapes never redirect to https.
	r.Get("/healthz", healthCheckHandler)
	r.Handle("/metrics", s.metrics)

	r.Group(func(r chi.Router) {
		r.Use(secure.New(secure.Options{
			BrowserXssFilter:     true,
			ContentTypeNosniff:   true,
			FrameDeny:            true,
			HostsProxyHeaders:    []string{"X-Forwarded-Host"},
			IsDevelopment:        isDev,
			SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
			SSLRedirect:          !isDev,
			STSIncludeSubdomains: true,
			STSPreload:           true,
			STSSeconds:           315360000,
		}).Handler)

		r.Get("/", rootHandler)
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL(strings.TrimSuffix(s.cfg.BaseURL, "/")+"/swagger/doc.json"),
		))

		r.Mount("/auth", s.authRoutes())
		r.Mount("/match", s.matchRoutes())
		r.Mount("/profile", s.profileRoutes())
	})

	return r
}

// HealthResponse reports the running build.
type HealthResponse struct {
	Healthy  string `json:"healthy" example:"true"`
	Revision string `json:"revision"`
	Tag      string `json:"tag"`
	Branch   string `json:"branch"`
}

// @Summary Health check
// @Description Returns service health status
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, HealthResponse{
		Healthy:  "true",
		Revision: os.Getenv("GIT_REVISION"),
		Tag:      os.Getenv("GIT_TAG"),
		Branch:   os.Getenv("GIT_BRANCH"),
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusNotFound, ErrorResponse{
		Error: "404: This page could not be found",
	})
}

const pageStyle = `
    <style>
      body { font-family: Arial, sans-serif; max-width: 800px; margin: 40px auto; padding: 20px; }
      h1 { color: #333; }
      .endpoint { margin: 20px 0; padding: 15px; border-left: 4px solid #c0392b; background: #f8f9fa; }
      .method { font-weight: bold; color: #c0392b; text-transform: uppercase; }
      .path { font-family: monospace; color: #333; margin: 5px 0; }
      .description { color: #666; margin: 5px 0; }
      .tag { background: #f4e1e1; color: #9d3939; padding: 2px 6px; border-radius: 3px; font-size: 0.8em; margin-right: 5px; }
    </style>`

// @Summary Get API information
// @Description Returns basic API information and available endpoints
// @Tags info
// @Produce html
// @Success 200 {string} string "HTML page with API information"
// @Router / [get]
func rootHandler(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString(`
<html>
  <head>
    <title>Minesduel API</title>` + pageStyle + `
  </head>
  <body>
    <h1>Minesduel API</h1>
    <p>Head-to-head minesweeper. Clients poll match state; there is no push channel.</p>
    <p><a href="/swagger/">View Swagger Documentation</a></p>

    <h2>Available Endpoints</h2>`)

	spec, err := docs.GetSwaggerSpec()
	if err != nil {
		log.Errorw("failed to parse swagger.json", zap.Error(err))
		spec = &docs.SwaggerSpec{}
	}

	paths := make([]string, 0, len(spec.Paths))
	for path := range spec.Paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		methods := spec.Paths[path]
		names := make([]string, 0, len(methods))
		for m := range methods {
			names = append(names, m)
		}
		sort.Strings(names)

		for _, method := range names {
			info := methods[method]
			fmt.Fprintf(&b, `
    <div class="endpoint">
      <div class="method">%s</div>
      <div class="path">%s</div>
      <div class="description">%s</div>
      <div>`, method, path, info.Summary)
			for _, tag := range info.Tags {
				fmt.Fprintf(&b, `<span class="tag">%s</span>`, tag)
			}
			b.WriteString(`</div>
    </div>`)
		}
	}

	b.WriteString(`
  </body>
</html>`)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(b.String())); err != nil {
		log.Errorw("failed to write response", zap.Error(err))
	}
}
