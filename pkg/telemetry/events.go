package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notable occurrence in a search or execution.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies the emitting component.
	Source string `json:"source"`

	// ExecutionID is the associated execution, if any.
	ExecutionID string `json:"execution_id,omitempty"`

	// FunctionID is the associated function, if any.
	FunctionID string `json:"function_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeSearchCompleted    = "search.completed"
	EventTypeExecutionStarted   = "execution.started"
	EventTypeExecutionStep      = "execution.step"
	EventTypeExecutionCompleted = "execution.completed"
	EventTypeExecutionFailed    = "execution.failed"
	EventTypePolicyViolation    = "policy.violation"
	EventTypeCatalogReloaded    = "catalog.reloaded"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers, optionally through a buffer.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishSearchCompleted publishes the outcome of a search.
func (ep *EventPublisher) PublishSearchCompleted(source, goal string, paths, steps int) error {
	level := EventLevelInfo
	if paths == 0 {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:    EventTypeSearchCompleted,
		Source:  "engine",
		Message: fmt.Sprintf("Search %s -> %s found %d paths", source, goal, paths),
		Level:   level,
		Data: map[string]interface{}{
			"source": source,
			"goal":   goal,
			"paths":  paths,
			"steps":  steps,
		},
	})
}

// PublishExecutionStarted publishes the start of a path execution.
func (ep *EventPublisher) PublishExecutionStarted(executionID, composition string) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionStarted,
		Source:      "executor",
		ExecutionID: executionID,
		Message:     fmt.Sprintf("Execution %s started: %s", executionID, composition),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"composition": composition,
		},
	})
}

// PublishExecutionStep publishes a completed step.
func (ep *EventPublisher) PublishExecutionStep(executionID, functionID, kind string, degraded bool) error {
	level := EventLevelInfo
	if degraded {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:        EventTypeExecutionStep,
		Source:      "executor",
		ExecutionID: executionID,
		FunctionID:  functionID,
		Message:     fmt.Sprintf("Step %s (%s) completed", functionID, kind),
		Level:       level,
		Data: map[string]interface{}{
			"kind":     kind,
			"degraded": degraded,
		},
	})
}

// PublishExecutionCompleted publishes a finished execution.
func (ep *EventPublisher) PublishExecutionCompleted(executionID string, confidence float64, duration time.Duration) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionCompleted,
		Source:      "executor",
		ExecutionID: executionID,
		Message:     fmt.Sprintf("Execution %s completed", executionID),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"confidence": confidence,
			"duration":   duration.Seconds(),
		},
	})
}

// PublishExecutionFailed publishes an aborted execution.
func (ep *EventPublisher) PublishExecutionFailed(executionID, functionID, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionFailed,
		Source:      "executor",
		ExecutionID: executionID,
		FunctionID:  functionID,
		Message:     fmt.Sprintf("Execution %s failed at %s: %s", executionID, functionID, reason),
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishPolicyViolation publishes a policy violation on an external call.
func (ep *EventPublisher) PublishPolicyViolation(functionID, policyName, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypePolicyViolation,
		Source:     "policy",
		FunctionID: functionID,
		Message:    fmt.Sprintf("Policy %s denied %s: %s", policyName, functionID, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// PublishCatalogReloaded publishes a catalog reload.
func (ep *EventPublisher) PublishCatalogReloaded(path string, types, functions int) error {
	return ep.Publish(Event{
		Type:    EventTypeCatalogReloaded,
		Source:  "catalog",
		Message: fmt.Sprintf("Catalog %s reloaded", path),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path":      path,
			"types":     types,
			"functions": functions,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents drains the buffer in batches until shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize || len(ep.buffer) == 0 {
				flush()
			}
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliverEvent hands an event to every matching subscriber in order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByExecutionID creates a filter for events of one execution.
func FilterByExecutionID(executionID string) EventFilter {
	return func(event Event) bool {
		return event.ExecutionID == executionID
	}
}
