package bus

import "time"

// EventBus is an in-process pub/sub bus used by the engine to announce
// discovery and gameplay milestones to outside collaborators.
//
// Delivery is synchronous: Publish calls handlers on the caller goroutine,
// which for the engine is always the event loop. Handlers must return quickly
// or hand work off to their own goroutine. Handler errors are joined and
// returned from Publish; they never stop delivery to the remaining handlers.
// All methods are safe for concurrent use.
type EventBus interface {
	// Publish delivers the event to subscribers of event.Type() and to
	// wildcard subscribers.
	Publish(event Event) error
	// Subscribe registers a handler for one event type. AllEvents subscribes
	// to every type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is a no-op.
	Unsubscribe(Subscription) error

	// AddObserver registers an observer to receive delivery callbacks.
	AddObserver(obs EventBusObserver)
	// RemoveObserver unregisters a previously added observer.
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a snapshot of accumulated counters. Counters only
	// move while at least one observer is registered.
	GetMetrics() EventBusMetrics
}

// AllEvents is the wildcard event type for Subscribe.
const AllEvents = "*"

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	EventHandler func(event Event) error
)

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries and errors.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, durationMicros int64)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
