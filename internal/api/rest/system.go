package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iotsentry/iotsentry/internal/system"
	"github.com/iotsentry/iotsentry/internal/types"
)

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	status := system.Collect()

	summary, err := s.devices.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("SYSTEM_500", "Failed to read registry", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"system":            status,
		"total_devices":     summary.TotalDevices,
		"connected_clients": s.wsHub.GetClientCount(),
	})
}
