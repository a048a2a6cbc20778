package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/edu-admin/internal/logging"
	"github.com/example/edu-admin/internal/repository"
	"github.com/example/edu-admin/internal/usecase"
)

// MaxUploadSize is the default limit for a single face image.
const MaxUploadSize = 10 << 20

// Services bundles the use cases exposed over HTTP.
type Services struct {
	Faces     *usecase.FaceUseCase
	Directory *usecase.DirectoryUseCase
	Accounts  *usecase.AccountUseCase
	Logger    *zap.Logger

	// MaxUploadBytes overrides MaxUploadSize when positive.
	MaxUploadBytes int64

	// Readiness lists the dependencies probed by GET /ready, keyed by name.
	Readiness map[string]Pinger
}

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handler struct {
	faces     *usecase.FaceUseCase
	directory *usecase.DirectoryUseCase
	accounts  *usecase.AccountUseCase
	logger    *zap.Logger
	maxUpload int64
	readiness map[string]Pinger
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Services, authMiddleware gin.HandlerFunc) {
	h := &handler{
		faces:     svc.Faces,
		directory: svc.Directory,
		accounts:  svc.Accounts,
		logger:    svc.Logger,
		maxUpload: svc.MaxUploadBytes,
		readiness: svc.Readiness,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.maxUpload <= 0 {
		h.maxUpload = MaxUploadSize
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", h.ready)

	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/studentsignup", h.studentSignup)
	router.POST("/studentlogin", h.studentLogin)
	router.GET("/profile", authMiddleware, h.profile)

	api := router.Group("/api", authMiddleware)
	h.registerFaceRoutes(api)
	h.registerDirectoryRoutes(api)
}

func (h *handler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.readiness))
	for name, dep := range h.readiness {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(status, gin.H{"checks": checks})
}

// writeError maps domain errors onto HTTP status codes.
func (h *handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, usecase.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, usecase.ErrNoFace):
		status, message = http.StatusUnprocessableEntity, usecase.ErrNoFace.Error()
	case errors.Is(err, usecase.ErrEncoder):
		status, message = http.StatusBadGateway, usecase.ErrEncoder.Error()
	case errors.Is(err, repository.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrConflict):
		status, message = http.StatusConflict, "already exists"
	}

	if status >= http.StatusInternalServerError {
		requestID := logging.RequestIDFromContext(c.Request.Context())
		logging.WithOperation(h.logger, c.FullPath(), requestID).Error("request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": message})
}
