package api

import (
	"net/http"
	"strconv"

	"filegate/internal/server/gate"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// multipartOverhead is the allowance for form boundaries and fields on top
// of the file itself.
const multipartOverhead = 64 << 10

// SetupRouter creates and configures the echo router with all routes and middleware.
// Upload bodies larger than maxFileSize plus form overhead are refused before
// they are read.
func SetupRouter(handler *Handler, g *gate.Gate, maxFileSize int64) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: append([]string{echo.HeaderContentType}, g.HeaderNames()...),
	}))
	e.Use(RequestLogger())
	e.Use(MetricsMiddleware())

	// Operational, ungated
	e.GET("/health", handler.HandleHealth)
	e.GET("/metrics", metricsHandler())

	gated := GateMiddleware(g)

	e.POST("/key", handler.HandleIssueKey, gated)
	uploadLimit := middleware.BodyLimit(strconv.FormatInt(maxFileSize+multipartOverhead, 10))
	e.POST("/upload", handler.HandleUpload, gated, uploadLimit)
	e.POST("/get", handler.HandleGet, gated)

	// Admin
	e.POST("/check", handler.HandleCheck, gated)
	e.POST("/delete", handler.HandleDeleteKey, gated)
	e.POST("/delete-file", handler.HandleDeleteFile, gated)
	e.POST("/stats", handler.HandleStats, gated)

	return e
}
