package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"courier/internal/identity"
	"courier/internal/relay"
)

// Pinger reports whether an external dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	registry *identity.Registry
	router   *relay.Router
	backend  Pinger
	logger   zerolog.Logger
}

func NewHandlers(registry *identity.Registry, router *relay.Router, backend Pinger, logger zerolog.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		router:   router,
		backend:  backend,
		logger:   logger,
	}
}

func (h *Handlers) Health(c *gin.Context) {
	if h.backend != nil {
		if err := h.backend.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "redis unavailable",
			})
			return
		}
	}

	stats := h.router.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"users":  stats.Users,
		"online": stats.Online,
		"queued": stats.Queued,
	})
}

type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email, and phone are required"})
		return
	}

	err := h.registry.Register(req.Email, req.Name, req.Phone)
	switch {
	case errors.Is(err, identity.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email, and phone are required"})
		return
	case errors.Is(err, identity.ErrDuplicateIdentity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("register failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	h.logger.Info().Str("key", req.Email).Msg("identity registered")
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

func (h *Handlers) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.registry.List()})
}
