// Package api exposes the comparison controller over HTTP so a thin map
// front end can drive it and fetch the rendered charts.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nodescope/area-compare/internal/compare"
	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/store"
)

// Options configures the router. Layer and Store are optional; their
// endpoints answer 404 when unset.
type Options struct {
	Layer          *mapview.Recorder
	Store          store.Store
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type server struct {
	ctrl  *compare.Controller
	layer *mapview.Recorder
	store store.Store
	log   *zap.Logger
}

// NewRouter builds the HTTP handler for ctrl.
func NewRouter(ctrl *compare.Controller, opts Options) http.Handler {
	s := &server{
		ctrl:  ctrl,
		layer: opts.Layer,
		store: opts.Store,
		log:   zap.L().With(zap.String("component", "api")),
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Get("/state", s.state)
		r.Post("/events", s.dispatch)
		r.Post("/city", s.loadCity)
		r.Post("/areas/{id}/toggle", s.toggleArea)
		r.Post("/compare", s.compare)
		r.Post("/reset", s.reset)

		r.Route("/chart", func(r chi.Router) {
			r.Post("/toggle", s.toggleChart)
			r.Get("/svg", s.chartSVG)
			r.Get("/png", s.chartPNG)
			r.Post("/hover", s.hoverEnter)
			r.Delete("/hover", s.hoverLeave)
		})

		r.Get("/map", s.mapGeoJSON)
		r.Get("/comparison", s.comparison)
		r.Get("/comparison/export", s.export)

		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
