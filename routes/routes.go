package routes

import (
	"context"
	"net/http"
	"slices"

	"promptparty/apperr"
	"promptparty/handlers"
	"promptparty/middleware"
	"promptparty/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ParticipantChecker gates websocket upgrades to session members.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, sessionID, userID string) (bool, error)
}

type Deps struct {
	Auth         *handlers.AuthHandler
	Rooms        *handlers.RoomHandler
	Games        *handlers.GameHandler
	Hub          *services.Hub
	Participants ParticipantChecker
	Tokens       middleware.TokenValidator
	Origins      []string
	Log          *zap.Logger
}

func SetupRoutes(router *gin.Engine, d Deps) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(d.Origins),
	}

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", d.Auth.Register)
			auth.POST("/login", d.Auth.Login)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(d.Tokens))
		{
			protected.GET("/auth/profile", d.Auth.GetProfile)

			rooms := protected.Group("/rooms")
			{
				rooms.POST("", d.Rooms.CreateRoom)
				rooms.GET("/:id", d.Rooms.GetRoom)
				rooms.POST("/:id/join", d.Rooms.JoinRoom)
			}

			sessions := protected.Group("/sessions")
			{
				sessions.GET("/:id", d.Games.GetState)
				sessions.POST("/:id/start", d.Games.StartSession)
				sessions.POST("/:id/answers", d.Games.SubmitAnswer)
				sessions.POST("/:id/votes", d.Games.SubmitVote)
				sessions.POST("/:id/phase", d.Games.AdvancePhase)
				sessions.POST("/:id/next-round", d.Games.NextRound)
			}
		}
	}

	// Live notifications. Browsers cannot set headers on upgrades, so the
	// token may arrive as ?token=.
	router.GET("/ws/sessions/:id", middleware.AuthMiddleware(d.Tokens), func(c *gin.Context) {
		sessionID := c.Param("id")
		userID := c.GetString("user_id")

		ok, err := d.Participants.IsParticipant(c.Request.Context(), sessionID, userID)
		if err != nil {
			status := apperr.HTTPStatus(apperr.CodeOf(err))
			c.JSON(status, gin.H{"error": apperr.MessageOf(err), "code": apperr.CodeOf(err), "status": status})
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this session", "code": apperr.CodeForbidden, "status": http.StatusForbidden})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			d.Log.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}

		client := d.Hub.Register(sessionID, userID, conn)
		d.Hub.Serve(client)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
