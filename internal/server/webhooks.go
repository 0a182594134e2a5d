package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ingestiondomain "github.com/smallbiznis/invoicerecovery/internal/ingestion/domain"
	"go.uber.org/zap"
)

func (s *Server) PaymentWebhook(c *gin.Context) {
	var req ingestiondomain.PaymentWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.ingestion.HandlePaymentWebhook(c.Request.Context(), orgIDFromContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) InboundReply(c *gin.Context) {
	var req ingestiondomain.InboundReply
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.ingestion.HandleInboundReply(c.Request.Context(), orgIDFromContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) DeliveryStatus(c *gin.Context) {
	var req ingestiondomain.DeliveryStatus
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updated, err := s.ingestion.HandleDeliveryStatus(c.Request.Context(), orgIDFromContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !updated {
		s.log.Debug("webhook.delivery.unmatched", zap.String("delivery_id", req.DeliveryID))
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated": updated}})
}
