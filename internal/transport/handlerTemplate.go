package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poro/notify-engine/internal/entity"
	"github.com/poro/notify-engine/internal/service"
)

type TemplateHandler struct {
	service service.TemplateUseCase
}

func NewTemplateHandler(service service.TemplateUseCase) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// Upsert is the administrative seeding endpoint; the dispatch path itself
// never writes templates.
func (h *TemplateHandler) Upsert(c *gin.Context) {
	var tmpl entity.NotificationTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl.Type = c.Param("type")
	if err := h.service.UpsertTemplate(c.Request.Context(), &tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tmpl)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	tmpl, err := h.service.GetTemplate(c.Request.Context(), c.Param("type"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tmpl)
}
