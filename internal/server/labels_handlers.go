package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/gin-gonic/gin"
)

type labelPayload struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleListLabels(kind labels.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := h.labels.List(c.Request.Context(), kind)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": nonNil(names)})
	}
}

func (h *httpHandler) handleCreateLabel(kind labels.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request labelPayload
		if err := c.ShouldBindJSON(&request); err != nil {
			respondInvalidRequest(c, "label name is required")
			return
		}
		if err := h.labels.Create(c.Request.Context(), actorFrom(c), kind, request.Name); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, labelPayload{Name: strings.TrimSpace(request.Name)})
	}
}

func (h *httpHandler) handleDeleteLabel(kind labels.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.labels.Delete(c.Request.Context(), actorFrom(c), kind, c.Param("name")); err != nil {
			h.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
