package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rationalmind/rationalmind-backend/internal/requestdata"
	"github.com/rationalmind/rationalmind-backend/internal/services"
)

type SessionHandler struct {
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (sh *SessionHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	sess, err := sh.sessionService.CreateSession(c.Request.Context(), rd.UserID)
	if err != nil {
		if errors.Is(err, services.ErrSessionConflict) {
			RespondError(c, http.StatusConflict, "session_conflict", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "session_create_failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

type endSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (sh *SessionHandler) End(c *gin.Context) {
	var req endSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", fmt.Errorf("session_id is not a valid uuid"))
		return
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	sess, err := sh.sessionService.EndSession(c.Request.Context(), rd.UserID, sessionID)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			RespondError(c, http.StatusNotFound, "session_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "session_end_failed", err)
		return
	}
	RespondOK(c, gin.H{"session": sess})
}

func (sh *SessionHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	sessions, err := sh.sessionService.ListSessions(c.Request.Context(), rd.UserID, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "session_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"sessions": sessions})
}

func (sh *SessionHandler) Messages(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", fmt.Errorf("session id is not a valid uuid"))
		return
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	messages, err := sh.sessionService.ListMessages(c.Request.Context(), rd.UserID, sessionID)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			RespondError(c, http.StatusNotFound, "session_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "message_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}
