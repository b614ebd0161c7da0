package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/workflow"
)

// HeaderUserID carries the acting user's id. It is trusted as given.
const HeaderUserID = "X-User-ID"

const actorKey = "actor"

var (
	errMissingActor = errors.New("missing " + HeaderUserID + " header")
	errAdminOnly    = errors.New("admin role required")
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// RequireActor resolves the X-User-ID header into a user
func (h *Handlers) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderUserID)
		if id == "" {
			fail(c, http.StatusUnauthorized, errMissingActor.Error())
			c.Abort()
			return
		}

		actor, err := h.services.Users.GetUser(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				fail(c, http.StatusUnauthorized, "unknown user "+id)
			} else {
				h.respondError(c, err)
			}
			c.Abort()
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireAdmin rejects actors that are not Admins
func (h *Handlers) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentActor(c).Role != entity.RoleAdmin {
			fail(c, http.StatusForbidden, errAdminOnly.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentActor(c *gin.Context) *entity.User {
	if v, exists := c.Get(actorKey); exists {
		if u, ok := v.(*entity.User); ok {
			return u
		}
	}
	return &entity.User{}
}

// statusFor maps a service or workflow error onto an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, workflow.ErrInvalidDecision):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrUnauthorized), errors.Is(err, service.ErrForbiddenScope):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrTerminal), errors.Is(err, workflow.ErrBlocked):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		fail(c, status, "internal error")
		return
	}
	fail(c, status, err.Error())
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}
