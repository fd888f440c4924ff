package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rationalmind/rationalmind-backend/internal/repos"
	"github.com/rationalmind/rationalmind-backend/internal/requestdata"
)

type ProfileHandler struct {
	profiles repos.ProfileRepo
}

func NewProfileHandler(profiles repos.ProfileRepo) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (ph *ProfileHandler) GetMe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	profile, err := ph.profiles.GetByID(c.Request.Context(), nil, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "profile_lookup_failed", err)
		return
	}
	if profile == nil {
		RespondError(c, http.StatusNotFound, "profile_not_found", fmt.Errorf("profile not found"))
		return
	}
	RespondOK(c, gin.H{"profile": profile})
}
