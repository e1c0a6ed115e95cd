// Package handler implements the Publisher HTTP Shim (C13): the thin HTTP
// surface an upstream application uses to inject submit/poll/cancel action
// messages onto the main queue.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/domain/ports"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/messaging/rabbitmq"
)

type PublisherHandler struct {
	publisher ports.Publisher
}

func NewPublisherHandler(publisher ports.Publisher) *PublisherHandler {
	return &PublisherHandler{publisher: publisher}
}

type cancelRequest struct {
	Reason string `json:"motivo" binding:"required"`
}

func (h *PublisherHandler) Submit(c *gin.Context) {
	id, err := parseFiscalDocumentId(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.publisher.Submit(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id_fatura": int64(id), "acao": "enviar"})
}

func (h *PublisherHandler) Poll(c *gin.Context) {
	id, err := parseFiscalDocumentId(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.publisher.Poll(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id_fatura": int64(id), "acao": "consultar", "tentativas": 1})
}

func (h *PublisherHandler) Cancel(c *gin.Context) {
	id, err := parseFiscalDocumentId(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.publisher.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		if errors.Is(err, rabbitmq.ErrReasonTooShort) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id_fatura": int64(id), "acao": "cancelar", "motivo": req.Reason})
}

func parseFiscalDocumentId(c *gin.Context) (entity.FiscalDocumentId, error) {
	raw := c.Param("id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return entity.FiscalDocumentId(n), nil
}
