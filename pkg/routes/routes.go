// Package routes assembles the HTTP API.
package routes

import (
	"context"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/middleware"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/routes/composite"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/mapping"
	"github.com/Ramsey-B/fern/pkg/routes/pass"
	"github.com/Ramsey-B/fern/pkg/routes/record"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// Options configures the server surface.
type Options struct {
	ServiceName    string
	DefaultProject string
	AllowOrigins   []string
	AllowMethods   []string
	Auth           middleware.AuthConfig
	// EnablePasses exposes pass triggers under /api/v1/passes.
	EnablePasses bool
}

// Deps are the services handlers resolve from the dependency container.
// Nil services are not registered.
type Deps struct {
	Health     *health.Checker
	Decisions  mapping.Decisions
	Judge      mapping.Judge
	Runner     pass.Runner
	Composites composite.Merger
	Ingester   record.Ingester
	// Generate supplies every generation option a pass request leaves unset.
	Generate matching.GenerateOptions
}

// NewContainer registers deps in a fresh container and returns it. Each
// container gets its own id, so several servers can live in one process.
func NewContainer(deps Deps, logger ectologger.Logger) (ectocontainer.DIContainer, error) {
	config := ectoinject.DefaultContainerConfig
	config.ID = "fern-" + uuid.NewString()
	config.LoggerConfig = &ectocontainer.DIContainerLoggerConfig{
		Prefix:   "ectoinject",
		LogLevel: loglevel.WARN,
		Enabled:  true,
		LogFunc: func(ctx context.Context, level, msg string) {
			if level == loglevel.WARN {
				logger.WithContext(ctx).Warn(msg)
				return
			}
			logger.WithContext(ctx).Debug(msg)
		},
	}

	container, err := ectoinject.NewDIContainer(config)
	if err != nil {
		return nil, err
	}

	registrations := []func() error{
		func() error { return ectoinject.RegisterInstance[ectologger.Logger](container, logger) },
		func() error { return ectoinject.RegisterInstance[matching.GenerateOptions](container, deps.Generate) },
	}
	if deps.Decisions != nil {
		registrations = append(registrations, func() error {
			return ectoinject.RegisterInstance[mapping.Decisions](container, deps.Decisions)
		})
	}
	if deps.Judge != nil {
		registrations = append(registrations, func() error {
			return ectoinject.RegisterInstance[mapping.Judge](container, deps.Judge)
		})
	}
	if deps.Runner != nil {
		registrations = append(registrations, func() error {
			return ectoinject.RegisterInstance[pass.Runner](container, deps.Runner)
		})
	}
	if deps.Composites != nil {
		registrations = append(registrations, func() error {
			return ectoinject.RegisterInstance[composite.Merger](container, deps.Composites)
		})
	}
	if deps.Ingester != nil {
		registrations = append(registrations, func() error {
			return ectoinject.RegisterInstance[record.Ingester](container, deps.Ingester)
		})
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return nil, err
		}
	}
	return container, nil
}

// NewServer builds the echo instance with middleware and every route.
// Health and metrics endpoints bypass project and auth middleware.
func NewServer(deps Deps, opts Options, logger ectologger.Logger) (*echo.Echo, error) {
	container, err := NewContainer(deps, logger)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(opts.ServiceName))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: opts.AllowOrigins,
		AllowMethods: opts.AllowMethods,
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			middleware.HeaderProject,
		},
	}))

	if deps.Health != nil {
		deps.Health.RegisterRoutes(e)
	}

	api := e.Group("/api/v1",
		middleware.Container(container.GetContainerID()),
		middleware.Context(opts.DefaultProject),
		middleware.Logger(logger),
		middleware.Auth(opts.Auth),
	)

	mapping.Register(api.Group("/mappings"))
	composite.Register(api.Group("/composites"))
	record.Register(api.Group("/records"))
	if opts.EnablePasses {
		pass.Register(api.Group("/passes"))
	}

	return e, nil
}
