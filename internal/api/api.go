// Package api implements the HTTP surface of the plant disease diagnosis
// service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/Phusssss/plant-disease-detection/internal/conf"
	"github.com/Phusssss/plant-disease-detection/internal/datastore"
	"github.com/Phusssss/plant-disease-detection/internal/errors"
	"github.com/Phusssss/plant-disease-detection/internal/inference"
	"github.com/Phusssss/plant-disease-detection/internal/logging"
	"github.com/Phusssss/plant-disease-detection/internal/observability"
)

// statsCacheTTL bounds how stale the cached stats response may get.
const statsCacheTTL = 30 * time.Second

// Controller manages the API routes and handlers.
type Controller struct {
	Echo            *echo.Echo
	DS              datastore.Interface
	Settings        *conf.Settings
	InferenceClient *inference.Client

	metrics    *observability.Metrics
	apiLogger  *slog.Logger
	statsCache *cache.Cache
}

// New creates a new API controller and registers all routes.
func New(settings *conf.Settings, ds datastore.Interface, client *inference.Client, metrics *observability.Metrics) *Controller {
	e := echo.New()
	e.HideBanner = true

	c := &Controller{
		Echo:            e,
		DS:              ds,
		Settings:        settings,
		InferenceClient: client,
		metrics:         metrics,
		apiLogger:       logging.ForService("api"),
		statsCache:      cache.New(statsCacheTTL, time.Minute),
	}
	if c.apiLogger == nil {
		c.apiLogger = slog.Default()
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	// The original deployment is called from browser dashboards on other
	// origins, so CORS stays wide open.
	e.Use(middleware.CORS())

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Echo.GET("/", c.GetRoot)
	c.Echo.GET("/healthz", c.GetHealth)

	c.Echo.POST("/predict/plant", c.PredictPlant)
	c.Echo.POST("/predict/rice", c.PredictRice)

	c.Echo.GET("/history", c.GetHistory)
	c.Echo.GET("/stats", c.GetStats)

	c.Echo.GET("/plants", c.GetPlants)
	c.Echo.POST("/plants", c.CreatePlant)
	c.Echo.GET("/plants/:id", c.GetPlant)
	c.Echo.DELETE("/plants/:id", c.DeletePlant)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// Start runs the HTTP server until the context is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		addr := ":" + c.Settings.WebServer.Port
		if err := c.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("starting web server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.Echo.Shutdown(shutdownCtx)
	}
}

// RootResponse is the body of the service identity endpoint.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// GetRoot returns the service name and version.
func (c *Controller) GetRoot(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, RootResponse{
		Message: "Plant Disease Detection API",
		Version: c.Settings.Version,
	})
}

// GetHealth returns a liveness indication.
func (c *Controller) GetHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	correlationID := uuid.NewString()[:8]

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}

	attrs := []any{
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	}
	var enhErr *errors.EnhancedError
	if errors.As(err, &enhErr) {
		attrs = append(attrs, enhErr.LogAttrs()...)
	} else {
		attrs = append(attrs, "category", string(errors.GetCategory(err)))
	}
	c.apiLogger.Error("API Error", attrs...)

	return ctx.JSON(code, errorResp)
}

// Debug logs debug messages when web server debug mode is enabled
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		c.apiLogger.Debug(fmt.Sprintf(format, v...))
	}
}
