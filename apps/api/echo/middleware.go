package echoapi

import (
	"net/http"
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests from this IP, please try again later")

// metricsMiddleware records the count and latency of requests per route template.
func metricsMiddleware(reg prometheus.Registerer, translator ut.Translator) echo.MiddlewareFunc {
	factory := promauto.With(reg)
	reqTotal := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paperdesk",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "status"})
	reqDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paperdesk",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				// the error handler has not run yet
				status, _ = classify(err, translator)
			}
			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{ctx.Request().Method, path, strconv.Itoa(status)}
			reqTotal.WithLabelValues(labels...).Inc()
			reqDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// rateLimiterMiddleware limits the API per client IP with store.
func rateLimiterMiddleware(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(ctx echo.Context) bool {
			return ctx.Request().Method == http.MethodOptions
		},
		Store: store,
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client").WithInternal(err)
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "rate limiter unavailable").WithInternal(err)
			}
			return errTooManyRequests
		},
	})
}
