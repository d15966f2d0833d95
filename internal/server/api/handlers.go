package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"filegate/internal/server/gate"
	"filegate/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether the metadata index is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains the HTTP handlers for the gateway API.
type Handler struct {
	gw   *service.Gateway
	gate *gate.Gate
	db   HealthChecker
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(gw *service.Gateway, g *gate.Gate, db HealthChecker) *Handler {
	return &Handler{gw: gw, gate: g, db: db}
}

// HandleIssueKey handles POST /key.
func (h *Handler) HandleIssueKey(c echo.Context) error {
	key, err := h.gw.IssueKey(c.Request().Context(), c.RealIP())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"key": key})
}

// HandleUpload handles POST /upload.
// Accepts a multipart form with a "file" field and the owner's "key".
func (h *Handler) HandleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}
	key := c.FormValue("key")
	if key == "" {
		return missingField(c, "key")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	result, err := h.gw.Upload(
		c.Request().Context(),
		key,
		fileHeader.Filename,
		src,
		fileHeader.Size,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// HandleGet handles POST /get.
// Resolves a file key to the blob id held by the sink.
func (h *Handler) HandleGet(c echo.Context) error {
	fileKey := c.FormValue("key")
	if fileKey == "" {
		return missingField(c, "key")
	}

	blobID, err := h.gw.Fetch(c.Request().Context(), fileKey)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"blob_id": blobID})
}

// HandleCheck handles POST /check and lists every active access key.
// A missing password is treated as a wrong one.
func (h *Handler) HandleCheck(c echo.Context) error {
	if !h.gate.AuthorizeAdmin(c.FormValue("Password")) {
		return forbidden(c)
	}

	keys, err := h.gw.ListKeys(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"keys": keys})
}

// HandleDeleteKey handles POST /delete.
// Revokes an access key and every file it owns.
func (h *Handler) HandleDeleteKey(c echo.Context) error {
	key := c.FormValue("key")
	password := c.FormValue("password")
	if key == "" || password == "" {
		return missingField(c, "key", "password")
	}
	if !h.gate.AuthorizeAdmin(password) {
		return forbidden(c)
	}

	if err := h.gw.RevokeKey(c.Request().Context(), key); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

// HandleDeleteFile handles POST /delete-file.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	key := c.FormValue("key")
	fileKey := c.FormValue("file_key")
	password := c.FormValue("password")
	if key == "" || fileKey == "" || password == "" {
		return missingField(c, "key", "file_key", "password")
	}
	if !h.gate.AuthorizeAdmin(password) {
		return forbidden(c)
	}

	if err := h.gw.RevokeFile(c.Request().Context(), key, fileKey); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

// HandleStats handles POST /stats.
// Returns aggregate index statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	password := c.FormValue("password")
	if password == "" {
		return missingField(c, "password")
	}
	if !h.gate.AuthorizeAdmin(password) {
		return forbidden(c)
	}

	stats, err := h.gw.Stats(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_keys":         stats.TotalKeys,
		"active_keys":        stats.ActiveKeys,
		"total_files":        stats.TotalFiles,
		"active_files":       stats.ActiveFiles,
		"active_bytes":       stats.ActiveBytes,
		"active_bytes_human": humanizeBytes(stats.ActiveBytes),
	})
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including index connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		slog.Warn("health check failed", "error", err)
		status = "degraded"
		dbStatus = "unavailable"
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

func missingField(c echo.Context, fields ...string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error": fmt.Sprintf("missing required field(s): %v", fields),
	})
}

// mapServiceError translates service-layer errors into HTTP responses.
// Backend failures are logged here and answered with a generic body.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrInvalidKey):
		return forbidden(c)
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file exceeds maximum allowed size",
		})
	default:
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
