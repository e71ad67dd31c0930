package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventGatewayCreated        EventType = "gateway.created"
	EventGatewayDeleted        EventType = "gateway.deleted"
	EventSegmentCreated        EventType = "segment.created"
	EventSegmentDeleted        EventType = "segment.deleted"
	EventNatRuleCreated        EventType = "nat.created"
	EventNatRuleDeleted        EventType = "nat.deleted"
	EventServiceCreated        EventType = "service.created"
	EventServiceDeleted        EventType = "service.deleted"
	EventLoadBalancerCreated   EventType = "lb.created"
	EventLoadBalancerDeleted   EventType = "lb.deleted"
	EventFirewallPolicyApplied EventType = "dfw.applied"
	EventFirewallPolicyDeleted EventType = "dfw.deleted"
	EventDHCPRelayCreated      EventType = "dhcp-relay.created"
	EventDHCPRelayDeleted      EventType = "dhcp-relay.deleted"
	EventTeardownExhausted     EventType = "teardown.exhausted"
)

// Event represents a change made on the controller
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Resource  string
	Message   string
	Metadata  map[string]string
}

// NewEvent creates an event for resource with a fresh ID
func NewEvent(eventType EventType, resource, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Resource:  resource,
		Message:   message,
	}
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers. A nil broker drops the event.
func (b *Broker) Publish(event *Event) {
	if b == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
