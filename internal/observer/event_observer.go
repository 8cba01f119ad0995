package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StagingEvent represents a staging lifecycle event. Events never carry image
// bytes or upload filenames, only request-scoped identifiers.
type StagingEvent struct {
	EventType      EventType     `json:"event_type"`
	Timestamp      time.Time     `json:"timestamp"`
	RequestID      string        `json:"request_id"`
	Stage          string        `json:"stage,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	Success        bool          `json:"success"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// EventType represents the type of staging event
type EventType string

const (
	// StagingStarted when a request enters the pipeline
	StagingStarted EventType = "staging_started"
	// ModelInvoked when the external model call returns
	ModelInvoked EventType = "model_invoked"
	// StagingCompleted when a diagnostic result is produced
	StagingCompleted EventType = "staging_completed"
	// StagingNonDiagnostic when the case resolves to a non-diagnostic result
	StagingNonDiagnostic EventType = "staging_non_diagnostic"
	// StagingFailed when the pipeline hits an internal fault
	StagingFailed EventType = "staging_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event StagingEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	NotifyObservers(ctx context.Context, event StagingEvent)
}

// Publisher is the default Subject implementation.
type Publisher struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *Publisher) NotifyObservers(ctx context.Context, event StagingEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, o := range p.observers {
		o.OnEvent(ctx, event)
	}
}

// LoggingObserver logs staging events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles staging events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event StagingEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"request_id":      event.RequestID,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.Stage != "" {
		fields["stage"] = event.Stage
	}
	entry := o.logger.WithFields(fields)
	if event.ErrorMessage != "" {
		entry = entry.WithField("error_message", event.ErrorMessage)
	}

	switch event.EventType {
	case StagingFailed:
		entry.Error("Staging event")
	case StagingNonDiagnostic:
		entry.Warn("Staging event")
	default:
		entry.Info("Staging event")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts staging events in memory.
type MetricsObserver struct {
	mu     sync.Mutex
	counts map[EventType]int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{counts: make(map[EventType]int64)}
}

// OnEvent handles staging events by counting them
func (o *MetricsObserver) OnEvent(ctx context.Context, event StagingEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[event.EventType]++
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Snapshot returns a copy of the current event counts.
func (o *MetricsObserver) Snapshot() map[EventType]int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[EventType]int64, len(o.counts))
	for k, v := range o.counts {
		out[k] = v
	}
	return out
}
