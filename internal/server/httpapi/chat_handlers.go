package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimathteacher/backend/internal/server/identity"
	"github.com/aimathteacher/backend/internal/server/models"
)

func messageJSON(m *models.ChatMessage) gin.H {
	return gin.H{
		"role":      m.Role,
		"content":   m.Content,
		"timestamp": m.Timestamp,
		"index":     m.MessageIndex,
	}
}

func sessionJSON(s *models.ChatSession) gin.H {
	return gin.H{
		"session_id":    s.SessionID,
		"title":         s.Title,
		"message_count": s.MessageCount,
		"created_at":    s.CreatedAt,
		"last_active":   s.LastActive,
	}
}

// handleChat runs one tutoring turn. An unresolved caller gets an anonymous
// account on the spot; the response always carries the session token the
// client should present next time.
func (s *Server) handleChat(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id := callerIdentity(c)
	sessionToken := ""
	if id == nil {
		user, err := s.auth.GetOrCreateAnonymous(c.Request.Context(), legacyToken(c))
		if err != nil {
			respondError(c, err)
			return
		}
		id = identity.Anonymous{ID: user.ID, Token: user.SessionToken}
		sessionToken = user.SessionToken
	} else if anon, ok := id.(identity.Anonymous); ok {
		sessionToken = anon.Token
	}

	sessionID, reply, err := s.chat.SendTurn(c.Request.Context(), req.SessionID, id, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"response":   reply,
		"session_id": sessionID,
		"timestamp":  time.Now(),
	}
	if sessionToken != "" {
		resp["session_token"] = sessionToken
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	sessionID := c.Param("session_id")

	msgs, err := s.chat.History(c.Request.Context(), sessionID, callerIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON(m))
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": out})
}

func (s *Server) handleListSessions(c *gin.Context) {
	list, err := s.chat.ListSessions(c.Request.Context(), callerIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(list))
	for _, sess := range list {
		out = append(out, sessionJSON(sess))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.chat.DeleteSession(c.Request.Context(), c.Param("session_id"), callerIdentity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

func (s *Server) handleClearSession(c *gin.Context) {
	if err := s.chat.ClearSession(c.Request.Context(), c.Param("session_id"), callerIdentity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session cleared"})
}

func (s *Server) handleArchiveSession(c *gin.Context) {
	if err := s.chat.ArchiveSession(c.Request.Context(), c.Param("session_id"), callerIdentity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session archived"})
}

func (s *Server) handleRenameSession(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.chat.RenameSession(c.Request.Context(), c.Param("session_id"), callerIdentity(c), req.Title); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session renamed"})
}
