package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/requestdata"
	"github.com/rationalmind/rationalmind-backend/internal/services"
	"github.com/rationalmind/rationalmind-backend/internal/sse"
)

type ChatHandler struct {
	log            *logger.Logger
	sessionService services.SessionService
	relayService   services.RelayService
}

func NewChatHandler(log *logger.Logger, sessionService services.SessionService, relayService services.RelayService) *ChatHandler {
	return &ChatHandler{
		log:            log.With("handler", "ChatHandler"),
		sessionService: sessionService,
		relayService:   relayService,
	}
}

// Stream handles one chat turn over SSE. All validation happens before the
// stream is opened: once SSE headers go out, errors can only be delivered
// in-band as error frames.
func (ch *ChatHandler) Stream(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Query("session_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", fmt.Errorf("session_id is not a valid uuid"))
		return
	}
	text := strings.TrimSpace(c.Query("text"))
	if text == "" {
		RespondError(c, http.StatusBadRequest, "empty_text", fmt.Errorf("text must not be empty"))
		return
	}
	var rationalityOverride *int
	if raw := c.Query("rationality"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 5 {
			RespondError(c, http.StatusBadRequest, "invalid_rationality", fmt.Errorf("rationality must be an integer between 1 and 5"))
			return
		}
		rationalityOverride = &v
	}

	rd := requestdata.GetRequestData(c.Request.Context())
	if _, err := ch.sessionService.GetOwnedActiveSession(c.Request.Context(), rd.UserID, sessionID); err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			RespondError(c, http.StatusNotFound, "session_not_found", err)
		case errors.Is(err, services.ErrSessionNotActive):
			RespondError(c, http.StatusConflict, "session_not_active", err)
		default:
			RespondError(c, http.StatusInternalServerError, "session_lookup_failed", err)
		}
		return
	}

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "streaming_unsupported", err)
		return
	}

	ch.relayService.StreamTurn(c.Request.Context(), writer, rd.UserID, sessionID, text, rationalityOverride)
}
