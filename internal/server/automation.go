package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	automationdomain "github.com/smallbiznis/invoicerecovery/internal/automation/domain"
)

type startAutomationRequest struct {
	UserID snowflake.ID `json:"user_id"`
	Smart  bool         `json:"smart"`
}

type rescheduleRequest struct {
	At string `json:"at"`
}

func (s *Server) StartAutomation(c *gin.Context) {
	invoiceID, ok := pathID(c, "invoice_id", "invoice")
	if !ok {
		return
	}

	var req startAutomationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	automation, err := s.automations.Start(c.Request.Context(), orgIDFromContext(c), automationdomain.StartRequest{
		InvoiceID: invoiceID,
		UserID:    req.UserID,
		Smart:     req.Smart,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": automation})
}

func (s *Server) GetInvoiceAutomation(c *gin.Context) {
	invoiceID, ok := pathID(c, "invoice_id", "invoice")
	if !ok {
		return
	}

	detail, err := s.automations.GetActiveByInvoice(c.Request.Context(), orgIDFromContext(c), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) StopInvoiceAutomation(c *gin.Context) {
	invoiceID, ok := pathID(c, "invoice_id", "invoice")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	orgID := orgIDFromContext(c)

	detail, err := s.automations.GetActiveByInvoice(ctx, orgID, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	automation, err := s.automations.Stop(ctx, orgID, detail.Automation.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": automation})
}

func (s *Server) RescheduleAutomation(c *gin.Context) {
	automationID, ok := pathID(c, "automation_id", "automation")
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	at, err := parseOptionalTime(req.At)
	if err != nil || at == nil {
		AbortWithError(c, newValidationError("at", "invalid_at", "at must be RFC3339 or YYYY-MM-DD"))
		return
	}

	automation, err := s.automations.Reschedule(c.Request.Context(), orgIDFromContext(c), automationID, *at)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": automation})
}

func (s *Server) ListAutomationEvents(c *gin.Context) {
	automationID, ok := pathID(c, "automation_id", "automation")
	if !ok {
		return
	}

	events, err := s.automations.ListEvents(c.Request.Context(), orgIDFromContext(c), automationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}
