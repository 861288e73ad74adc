package http

import (
	"net/http"

	"github.com/GKAANU/Sonox-panel/internal/app/orch"
	"github.com/GKAANU/Sonox-panel/internal/domain"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	orch *orch.Orchestrator
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Stats())
}

type lookupResponse struct {
	UserID   domain.UserID       `json:"userId"`
	Identity domain.ConnectionID `json:"identity,omitempty"`
	Online   bool                `json:"online"`
}

func (h *handlers) lookupUser(c *gin.Context) {
	uid, err := domain.ParseUserID(c.Param("uid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg := h.orch.LookupUser(uid)
	if msg.Identity == "" {
		c.JSON(http.StatusNotFound, lookupResponse{UserID: uid})
		return
	}
	c.JSON(http.StatusOK, lookupResponse{UserID: uid, Identity: msg.Identity, Online: true})
}
