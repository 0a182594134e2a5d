package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoicerecovery/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// RunSweep lets an external cron drive the dispatcher when the in-process trigger is off.
func (s *Server) RunSweep(c *gin.Context) {
	ctx, correlationID := correlation.EnsureCorrelationID(c.Request.Context())

	result, err := s.sweeper.RunOnce(ctx)
	if err != nil {
		s.log.Error("sweep.trigger.failed", zap.String("correlation_id", correlationID), zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
