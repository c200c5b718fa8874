package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"personachat/internal/extract"
	"personachat/internal/models"
	"personachat/internal/service/ai"
	"personachat/internal/service/session"
)

// SessionService is the slice of the session manager the handlers need.
type SessionService interface {
	Create() models.Session
	Delete(id string) error
	Snapshot(id string) (*session.Snapshot, error)
	CreatePersona(ctx context.Context, id string, img models.ImagePayload) (*models.Persona, error)
	SubmitTurn(ctx context.Context, id, text string) (models.Turn, models.Turn, error)
}

// ModelCatalog lists the vision-capable models the active provider offers.
type ModelCatalog interface {
	ListVisionModels(ctx context.Context) ([]ai.ModelInfo, error)
}

// Handler wires HTTP routes to the session manager and the model catalog.
type Handler struct {
	sessions SessionService
	catalog  ModelCatalog
}

// NewHandler constructs a Handler instance.
func NewHandler(sessions SessionService, catalog ModelCatalog) *Handler {
	return &Handler{sessions: sessions, catalog: catalog}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.GET("/models", h.listModels)
	api.POST("/sessions", h.createSession)
	api.GET("/sessions/:id", h.getSession)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.POST("/sessions/:id/persona", h.createPersona)
	api.POST("/sessions/:id/messages", h.submitMessage)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyMessage), errors.Is(err, session.ErrNoImage):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrHistoryTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ai.ErrUpstreamGeneration),
		errors.Is(err, extract.ErrNoStructuredPayload),
		errors.Is(err, extract.ErrMalformedPersona):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listModels(c *gin.Context) {
	list, err := h.catalog.ListVisionModels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "list models failed"})
		return
	}
	if len(list) == 0 {
		list = make([]ai.ModelInfo, 0)
	}
	c.JSON(http.StatusOK, gin.H{"models": list})
}

func (h *Handler) createSession(c *gin.Context) {
	sess := h.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"id":         sess.ID,
		"created_at": sess.CreatedAt,
		"updated_at": sess.UpdatedAt,
	})
}

func (h *Handler) getSession(c *gin.Context) {
	snap, err := h.sessions.Snapshot(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	messages := snap.Messages
	if messages == nil {
		messages = make([]models.Turn, 0)
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  snap.Session,
		"persona":  snap.Persona,
		"messages": messages,
	})
}

func (h *Handler) deleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

const maxUploadBytes = 10 << 20 // 10 MB

func (h *Handler) createPersona(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		writeError(c, session.ErrNoImage)
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open image failed"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	_ = f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read image failed"})
		return
	}
	if len(data) == 0 {
		writeError(c, session.ErrNoImage)
		return
	}

	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	contentType := http.DetectContentType(sniff)
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	persona, err := h.sessions.CreatePersona(c.Request.Context(), c.Param("id"), models.ImagePayload{
		Data: data,
		MIME: contentType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"persona": persona})
}

type messageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) submitMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userTurn, aiTurn, err := h.sessions.SubmitTurn(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		// A populated assistant turn means the exchange was recorded with
		// the fallback reply; surface both the turns and the failure.
		if aiTurn.Content != "" {
			c.JSON(http.StatusBadGateway, gin.H{
				"user_message": userTurn,
				"ai_message":   aiTurn,
				"error":        err.Error(),
			})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_message": userTurn,
		"ai_message":   aiTurn,
	})
}
