// Package httpapi exposes the REST surface of the math tutor backend over
// gin. Handlers are thin: they bind the request, call one service
// operation, and translate the result.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aimathteacher/backend/internal/logging"
	"github.com/aimathteacher/backend/internal/server/services"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	auth *services.AuthService
	chat *services.ChatService
	log  logging.Logger
}

// NewServer constructs the HTTP server facade.
func NewServer(auth *services.AuthService, chat *services.ChatService, log logging.Logger) *Server {
	return &Server{auth: auth, chat: chat, log: log.With("component", "httpapi")}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.identityMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/refresh", s.handleRefresh)
		authGroup.POST("/logout", s.handleLogout)
		authGroup.POST("/password-reset", s.handlePasswordResetRequest)
		authGroup.POST("/password-reset/confirm", s.handlePasswordResetConfirm)
		authGroup.POST("/change-password", s.handleChangePassword)
		authGroup.POST("/verify-email", s.handleVerifyEmail)
	}

	userGroup := r.Group("/api/user")
	{
		userGroup.GET("/profile", s.handleGetProfile)
		userGroup.PUT("/profile", s.handleUpdateProfile)
		userGroup.DELETE("/account", s.handleDeleteAccount)
	}

	r.POST("/chat", s.handleChat)
	r.GET("/history/:session_id", s.handleHistory)
	r.GET("/sessions", s.handleListSessions)
	r.DELETE("/sessions/:session_id", s.handleDeleteSession)
	r.POST("/sessions/:session_id/clear", s.handleClearSession)
	r.POST("/sessions/:session_id/archive", s.handleArchiveSession)
	r.POST("/sessions/:session_id/rename", s.handleRenameSession)

	return r
}
