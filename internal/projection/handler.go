package projection

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/boltlab/tripmatch/internal/core/errors"
	"github.com/boltlab/tripmatch/internal/sink"
)

// RegisterRoutes registers the query API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/metrics/:date", s.HandleDailyMetrics)
	r.GET("/v1/trips/:trip_id", s.HandleTripStatus)
}

// HandleDailyMetrics handles GET /v1/metrics/:date.
func (s *Service) HandleDailyMetrics(c *gin.Context) {
	date := c.Param("date")

	metrics, err := s.DailyMetrics(c.Request.Context(), date)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidQuery):
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpValidationError,
				Message:   err.Error(),
			})
		case errors.Is(err, sink.ErrNoPartition):
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpNotFoundError,
				Message:   "No metrics for date",
				Details:   map[string]string{"date": date},
			})
		default:
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpInternalError,
				Message:   "Failed to read metrics",
			})
		}
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// HandleTripStatus handles GET /v1/trips/:trip_id.
func (s *Service) HandleTripStatus(c *gin.Context) {
	status, err := s.TripStatus(c.Request.Context(), c.Param("trip_id"))
	if err != nil {
		if errors.Is(err, ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpValidationError,
				Message:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to resolve trip status",
		})
		return
	}

	c.JSON(http.StatusOK, status)
}
