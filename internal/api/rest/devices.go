package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/types"
)

// GET /api/v1/devices?status=&device_type=
func (s *Server) listDevices(c *gin.Context) {
	filter := types.ListFilter{
		Status:     c.Query("status"),
		DeviceType: c.Query("device_type"),
	}

	deviceList, err := s.devices.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list devices", zap.Error(err))
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("DEVICE_500", "Failed to list devices", err.Error()))
		return
	}

	c.JSON(http.StatusOK, deviceList)
}

// GET /api/v1/devices/:id
func (s *Server) getDevice(c *gin.Context) {
	id := c.Param("id")

	device, err := s.devices.Get(c.Request.Context(), id)
	if err != nil {
		s.respondDeviceError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// POST /api/v1/devices
func (s *Server) registerDevice(c *gin.Context) {
	var input types.DeviceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest,
			types.NewErrorResponse("DEVICE_400", "Invalid request body", err.Error()))
		return
	}

	device, err := s.devices.Register(c.Request.Context(), input)
	if err != nil {
		s.respondDeviceError(c, "", err)
		return
	}

	c.JSON(http.StatusCreated, device)
}

// PUT /api/v1/devices/:id
func (s *Server) updateDevice(c *gin.Context) {
	id := c.Param("id")

	var input types.DeviceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest,
			types.NewErrorResponse("DEVICE_400", "Invalid request body", err.Error()))
		return
	}

	device, err := s.devices.Update(c.Request.Context(), id, input)
	if err != nil {
		s.respondDeviceError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, device)
}

// DELETE /api/v1/devices/:id
func (s *Server) deleteDevice(c *gin.Context) {
	id := c.Param("id")

	if err := s.devices.Delete(c.Request.Context(), id); err != nil {
		s.respondDeviceError(c, id, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GET /api/v1/devices/stats/summary
func (s *Server) getDeviceStats(c *gin.Context) {
	summary, err := s.devices.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to compute device stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("DEVICE_500", "Failed to compute stats", err.Error()))
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) respondDeviceError(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, types.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound,
			types.NewErrorResponse("DEVICE_404", "Device not found", gin.H{"id": id}))
	case errors.Is(err, types.ErrInvalidInput):
		c.JSON(http.StatusUnprocessableEntity,
			types.NewErrorResponse("DEVICE_422", "Invalid device input", err.Error()))
	default:
		s.logger.Error("Device operation failed",
			zap.String("device_id", id),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError,
			types.NewErrorResponse("DEVICE_500", "Internal error", err.Error()))
	}
}
