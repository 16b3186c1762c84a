package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar is implemented by each handler to mount its routes.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them under one versioned prefix.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithAPIVersion overrides the default "v1" prefix segment.
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter wraps engine; routes are mounted on Setup.
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a registrar. Chainable.
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every queued registrar under /api/<version>.
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}
