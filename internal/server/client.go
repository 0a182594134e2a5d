package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) AnalyzeClient(c *gin.Context) {
	clientID, ok := pathID(c, "client_id", "client")
	if !ok {
		return
	}

	profile, err := s.behavior.AnalyzeClient(c.Request.Context(), orgIDFromContext(c), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) AnalyzeOrganization(c *gin.Context) {
	result, err := s.behavior.AnalyzeOrganization(c.Request.Context(), orgIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetClientProfile(c *gin.Context) {
	clientID, ok := pathID(c, "client_id", "client")
	if !ok {
		return
	}

	profile, err := s.behavior.GetProfile(c.Request.Context(), orgIDFromContext(c), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) GetClientInsights(c *gin.Context) {
	clientID, ok := pathID(c, "client_id", "client")
	if !ok {
		return
	}

	insights, err := s.assistant.Insights(c.Request.Context(), orgIDFromContext(c), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": insights})
}
