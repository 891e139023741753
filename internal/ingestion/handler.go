package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/boltlab/tripmatch/internal/api/v1"
	httperr "github.com/boltlab/tripmatch/internal/core/errors"
	"github.com/boltlab/tripmatch/internal/core/storage"
	"github.com/boltlab/tripmatch/internal/core/trip"
	"github.com/boltlab/tripmatch/internal/notifier"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to persist trip record"
	msgNotifyFailed   = "Failed to notify matcher"
)

// ingestionError carries the structured HTTP error shape from a helper back
// to the handler. Helpers return this instead of writing to gin.Context
// directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// wireEvent is what both trip halves have in common from the handler's
// point of view.
type wireEvent interface {
	Validate() error
	ToPartial(ingestedAt time.Time) (*trip.PartialRecord, error)
}

// StartHandler accepts the "start" half of a trip.
func (s *Service) StartHandler(c *gin.Context) {
	s.ingest(c, &v1.TripStartEvent{}, trip.KindStart)
}

// EndHandler accepts the "end" half of a trip.
func (s *Service) EndHandler(c *gin.Context) {
	s.ingest(c, &v1.TripEndEvent{}, trip.KindEnd)
}

func (s *Service) ingest(c *gin.Context, evt wireEvent, kind trip.Kind) {
	payloadSize, err := s.parseEvent(c, evt)
	if err != nil {
		writeError(c, err)
		return
	}

	// Boundary validation: a malformed half is rejected here and never
	// becomes a partial record.
	if verr := evt.Validate(); verr != nil {
		slog.Warn("Rejected invalid trip event", "kind", kind.String(), "error", verr)
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    verr.Error(),
		})
		return
	}

	record, perr := evt.ToPartial(time.Now().UTC())
	if perr != nil {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    perr.Error(),
		})
		return
	}

	slog.Info("Received trip event",
		"trip_id", record.TripID,
		"kind", kind.String(),
		"day_partition", record.DayPartition,
		"payload_size", payloadSize)

	duplicate, serr := s.persistPartial(c.Request.Context(), record)
	if serr != nil {
		writeError(c, serr)
		return
	}

	// Notify even for duplicates: upstream delivery is at-least-once and
	// the matcher is idempotent, so an extra notification is always safe
	// while a missing one could strand a trip.
	if nerr := s.notify(c.Request.Context(), record); nerr != nil {
		writeError(c, nerr)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":    "accepted",
		"duplicate": duplicate,
	})
}

// parseEvent reads the raw request body under the size cap and binds it
// into the wire event. Returns the payload size for structured logging.
func (s *Service) parseEvent(c *gin.Context, evt wireEvent) (int, *ingestionError) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if err := c.ShouldBindJSON(evt); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	return len(bodyBytes), nil
}

// persistPartial saves the half to the partial store. A duplicate write
// (redelivered half) is reported but not treated as a failure.
func (s *Service) persistPartial(ctx context.Context, record *trip.PartialRecord) (duplicate bool, _ *ingestionError) {
	err := s.partials.Put(ctx, record)
	if errors.Is(err, storage.ErrDuplicate) {
		slog.Info("Duplicate trip half, first write wins",
			"trip_id", record.TripID,
			"kind", record.Kind.String())
		return true, nil
	}
	if err != nil {
		slog.Error("Failed to persist partial record", "error", err, "trip_id", record.TripID)
		return false, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}
	return false, nil
}

// notify publishes the change notification for the written half.
func (s *Service) notify(ctx context.Context, record *trip.PartialRecord) *ingestionError {
	if err := s.notifications.Publish(ctx, record.TripID, record.Kind, notifier.WriteInsert); err != nil {
		slog.Error("Failed to publish change notification", "error", err, "trip_id", record.TripID)
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgNotifyFailed,
		}
	}
	return nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
