package router

import (
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/api"
	"github/chapool/go-custody/internal/api/handlers"
	"github/chapool/go-custody/internal/api/httperrors"
	"github/chapool/go-custody/internal/api/middleware"
)

func Init(s *api.Server) {
	s.Echo = echo.New()

	s.Echo.Debug = s.Config.Echo.Debug
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Logger.SetOutput(&echoLogger{level: s.Config.Logger.RequestLevel})

	// ---
	// General middleware
	if s.Config.Echo.EnableRecoverMiddleware {
		s.Echo.Use(echoMiddleware.Recover())
	} else {
		log.Warn().Msg("Disabling recover middleware due to environment config")
	}

	if s.Config.Echo.EnableRequestIDMiddleware {
		s.Echo.Use(echoMiddleware.RequestID())
	} else {
		log.Warn().Msg("Disabling request ID middleware due to environment config")
	}

	if s.Config.Echo.EnableLoggerMiddleware {
		s.Echo.Use(middleware.Logger(s.Config.Logger.RequestLevel))
	} else {
		log.Warn().Msg("Disabling logger middleware due to environment config")
	}

	if s.Config.Echo.EnableMetricsMiddleware {
		s.Echo.Use(s.Metrics.EchoMiddleware())
	}

	if s.Config.Echo.BodyLimit != "" {
		s.Echo.Use(echoMiddleware.BodyLimit(s.Config.Echo.BodyLimit))
	}

	// enable our custom error handler
	s.Echo.HTTPErrorHandler = httperrors.HTTPErrorHandler

	// ---
	// Initialize our general groups and set middleware to use above them
	s.Router = &api.Router{
		Routes: nil, // will be populated by handlers.AttachAllRoutes(s)

		// Unsecured base group available at /**
		Root: s.Echo.Group(""),

		// Management endpoints, /-/healthy checks the mgmt-secret itself
		Management: s.Echo.Group("/-"),

		// Operator surface, guarded by the admin token
		APIV1Admin: s.Echo.Group("/api/v1/admin", middleware.AdminToken(s.Config.Custody.AdminToken)),
	}

	// ---
	// Finally attach our handlers
	handlers.AttachAllRoutes(s)
}
