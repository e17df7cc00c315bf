package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"courier/internal/identity"
	"courier/internal/relay"
	ws "courier/internal/websocket"
)

type Deps struct {
	Registry    *identity.Registry
	Router      *relay.Router
	Hub         *ws.Hub
	Backend     Pinger
	Gatherer    prometheus.Gatherer
	CORSOrigins string
	Logger      zerolog.Logger
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	logger := deps.Logger.With().Str("component", "api").Logger()
	handlers := NewHandlers(deps.Registry, deps.Router, deps.Backend, logger)

	allowedOrigins := strings.Split(deps.CORSOrigins, ",")
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin header.
			if origin == "" {
				return true
			}
			return allowedOrigin(allowedOrigins, origin)
		},
	}

	router.Use(CORS(deps.CORSOrigins))
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/health", handlers.Health)
	router.POST("/register", handlers.Register)
	router.GET("/users", handlers.ListUsers)

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		client := ws.NewClient(deps.Hub, conn)
		deps.Hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	})
}
