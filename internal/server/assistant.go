package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	assistantdomain "github.com/smallbiznis/invoicerecovery/internal/assistant/domain"
)

func (s *Server) AssistantChat(c *gin.Context) {
	var req assistantdomain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.assistant.Chat(c.Request.Context(), orgIDFromContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// AssistantAction executes one action previously suggested by the assistant.
func (s *Server) AssistantAction(c *gin.Context) {
	var req assistantdomain.RawAction
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.assistant.Execute(c.Request.Context(), orgIDFromContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
