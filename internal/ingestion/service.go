package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/boltlab/tripmatch/internal/core/storage"
	"github.com/boltlab/tripmatch/internal/notifier"
)

// Service is the raw-write boundary: it validates incoming trip halves,
// persists them as partial records and notifies the matching engine.
type Service struct {
	partials         storage.PartialStore
	notifications    notifier.Notifier
	maxBodySizeBytes int
}

func NewService(partials storage.PartialStore, notifications notifier.Notifier, maxBodySizeMB int) *Service {
	if partials == nil {
		panic("ingestion: partial store must not be nil")
	}
	if notifications == nil {
		panic("ingestion: notifier must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		partials:         partials,
		notifications:    notifications,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the raw-write endpoints.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/trips/start", s.StartHandler)
	r.POST("/v1/trips/end", s.EndHandler)
}
