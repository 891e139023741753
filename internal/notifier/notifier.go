// Package notifier delivers change notifications for partial-record
// writes to the matching engine.
//
// The contract is at-least-once with no ordering guarantee: consumers
// must treat every delivery as possibly duplicated and possibly racing
// the counterpart half's delivery.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/boltlab/tripmatch/internal/core/trip"
)

// WriteType describes the mutation that produced a notification.
type WriteType string

const (
	WriteInsert WriteType = "insert"
	WriteDelete WriteType = "delete"
)

// Notification signals that a partial record was written.
type Notification struct {
	// DeliveryID identifies one delivery attempt, not the underlying
	// write: redeliveries of the same write carry distinct IDs.
	DeliveryID string
	TripID     string
	Kind       trip.Kind
	WriteType  WriteType
}

// Notifier is the stream-of-mutations abstraction between the raw-write
// path and the matching engine.
type Notifier interface {
	// Publish enqueues a notification, blocking while the queue is full.
	Publish(ctx context.Context, tripID string, kind trip.Kind, wt WriteType) error

	// Subscribe returns the delivery channel. The channel is closed when
	// the notifier is closed.
	Subscribe() <-chan Notification

	// Close stops accepting publishes and closes the delivery channel
	// once the queue drains.
	Close() error
}

const defaultCapacity = 4096

// InMemory is a bounded channel-backed Notifier for single-process
// deployments and tests. A durable stream (Kinesis, CDC feed) satisfies
// the same interface in larger topologies.
type InMemory struct {
	deliveries chan Notification

	mu     sync.RWMutex
	closed bool
}

// NewInMemory creates an in-memory notifier with the given capacity.
// capacity <= 0 selects the default.
func NewInMemory(capacity int) *InMemory {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &InMemory{
		deliveries: make(chan Notification, capacity),
	}
}

// Publish enqueues a notification for one partial-record write.
func (n *InMemory) Publish(ctx context.Context, tripID string, kind trip.Kind, wt WriteType) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return fmt.Errorf("notifier is closed")
	}

	notification := Notification{
		DeliveryID: uuid.New().String(),
		TripID:     tripID,
		Kind:       kind,
		WriteType:  wt,
	}

	select {
	case n.deliveries <- notification:
		slog.Debug("[Notifier] Published",
			"delivery_id", notification.DeliveryID,
			"trip_id", tripID,
			"kind", kind.String(),
			"write_type", string(wt))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns the delivery channel.
func (n *InMemory) Subscribe() <-chan Notification {
	return n.deliveries
}

// Close stops publishes and closes the delivery channel. Notifications
// already queued remain readable until drained.
func (n *InMemory) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	close(n.deliveries)
	return nil
}
