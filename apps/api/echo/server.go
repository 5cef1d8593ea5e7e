package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/trezcool/paperdesk/core"
	"github.com/trezcool/paperdesk/core/notification"
	"github.com/trezcool/paperdesk/core/policy"
	"github.com/trezcool/paperdesk/core/user"
	"github.com/trezcool/paperdesk/core/workflow"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool
		SignalShutdown func()

		Validate   *validator.Validate
		Translator ut.Translator

		Policy        policy.Policy
		Users         *user.Service
		Notifications *notification.Service
		Workflow      *workflow.Orchestrator

		// RateLimitStore overrides the in-memory store of the rate limiter (eg. with a Redis store).
		RateLimitStore middleware.RateLimiterStore
		// Registry receives the HTTP metrics and is exposed on /metrics; a private one is used when nil.
		Registry *prometheus.Registry
		// UploadsDir is served on /uploads when set (local blob backend).
		UploadsDir string
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
		tk   *Tokenizer
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
		tk:   NewTokenizer(opts.Conf),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf
	if s.opts.Registry == nil {
		s.opts.Registry = prometheus.NewRegistry()
	}

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Logger.SetLevel(log.INFO)
	s.app.Validator = &appValidator{validate: s.opts.Validate}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())
	s.app.Use(middleware.Secure())
	s.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))
	s.app.Use(metricsMiddleware(s.opts.Registry, s.opts.Translator))

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{})))
	if s.opts.UploadsDir != "" {
		s.app.Static("/uploads", s.opts.UploadsDir)
	}

	store := s.opts.RateLimitStore
	if store == nil {
		store = middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(conf.RateLimit.Requests) / conf.RateLimit.Window.Seconds()),
			Burst:     conf.RateLimit.Requests,
			ExpiresIn: conf.RateLimit.Window,
		})
	}
	api := s.app.Group("/api", rateLimiterMiddleware(store))
	api.RouteNotFound("/*", routeNotFound)
	api.GET("/health", s.health)

	jwt := s.tk.Middleware(s.opts.Users)
	registerAuthAPI(api, jwt, s.opts.Users, s.tk)
	registerUserAPI(api, jwt, s.opts.Policy, s.opts.Users, s.opts.Workflow)
	registerAssignmentAPI(api, jwt, s.opts.Workflow)
	registerDocumentAPI(api, jwt, s.opts.Workflow)
	registerNotificationAPI(api, jwt, s.opts.Notifications)

	s.app.RouteNotFound("/*", routeNotFound)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

func routeNotFound(echo.Context) error {
	return errHttpNotFound
}

func (s *server) health(ctx echo.Context) error {
	return respondMessage(ctx, http.StatusOK, "Research Portal API is running")
}
