package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360/maxbridge/config"
	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/metric"
	"github.com/c360/maxbridge/state"
)

// OutputFunc receives the normalized routing record for a processed
// message. The record layout mirrors the notification wire format:
// source, destination, command, priority, timestamp, then args.
type OutputFunc func(record []state.Value)

// StatusFunc receives human-readable status lines.
type StatusFunc func(status string)

// Orchestrator is the bridge's central router. It validates and admits
// messages into the bounded queue, drains them with the worker pool,
// resolves components and technologies, and tracks core service
// connections.
type Orchestrator struct {
	cfg      config.OrchestratorConfig
	queue    *MessageQueue
	pool     *WorkerPool
	registry *ComponentRegistry
	selector *TechnologySelector
	services *ServiceManager

	onCommand OutputFunc
	onStatus  StatusFunc
	onError   ErrorFunc

	lifecycleMu sync.Mutex
	initialized bool

	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures an Orchestrator before initialization.
type Option func(*Orchestrator)

// WithCommandOutput sets the callback for processed routing records.
func WithCommandOutput(fn OutputFunc) Option {
	return func(o *Orchestrator) { o.onCommand = fn }
}

// WithStatusOutput sets the callback for status lines.
func WithStatusOutput(fn StatusFunc) Option {
	return func(o *Orchestrator) { o.onStatus = fn }
}

// WithErrorOutput sets the callback for worker errors.
func WithErrorOutput(fn ErrorFunc) Option {
	return func(o *Orchestrator) { o.onError = fn }
}

// WithServiceConnector sets the connector used for core services.
func WithServiceConnector(c ServiceConnector) Option {
	return func(o *Orchestrator) {
		o.services = NewServiceManager(c, o.cfg.AutoReconnect, o.logger, o.metrics)
	}
}

// New creates an orchestrator from validated configuration.
func New(cfg config.OrchestratorConfig, logger *slog.Logger, metrics *metric.Metrics, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:      cfg,
		queue:    NewMessageQueue(cfg.QueueSize, metrics),
		registry: NewComponentRegistry(),
		selector: NewTechnologySelector(),
		logger:   logger,
		metrics:  metrics,
	}
	o.services = NewServiceManager(nil, cfg.AutoReconnect, logger, metrics)

	for _, opt := range opts {
		opt(o)
	}

	o.pool = NewWorkerPool(cfg.WorkerThreads, o.queue, o.processMessage, o.workerError, metrics)
	return o
}

// Initialize starts the queue and worker pool, registers the built-in
// components, and connects the core services. Idempotent.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.initialized {
		return nil
	}

	o.queue.Start()
	o.pool.Start()

	builtins := []struct {
		name         string
		channel      ChannelID
		capabilities string
	}{
		{"intelligence", ChannelIntelligence, "context, llm, reasoning"},
		{"execution", ChannelExecution, "max_api, dsp, patching"},
		{"interaction", ChannelInteraction, "ui, feedback, visualization"},
		{"system", ChannelSystem, "orchestration, routing, monitoring"},
	}
	for _, b := range builtins {
		if err := o.registry.Register(b.name, b.channel, b.capabilities); err != nil {
			return errors.WrapFatal(err, "Orchestrator", "Initialize",
				fmt.Sprintf("register component %q", b.name))
		}
	}

	for _, service := range CoreServices {
		if err := o.services.Connect(ctx, service); err != nil {
			o.logger.Warn("core service connect failed", "service", service, "error", err)
		}
	}

	o.initialized = true
	o.emitStatus("orchestrator initialized")
	o.logger.Info("orchestrator initialized",
		"queue_capacity", o.queue.Capacity(),
		"workers", o.pool.Workers())
	return nil
}

// Stop drains the pool and queue. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if !o.initialized {
		return
	}
	o.initialized = false

	// Pool first: it stops the queue itself to free blocked workers.
	o.pool.Stop()
	o.queue.Stop()

	o.emitStatus("orchestrator stopped")
	o.logger.Info("orchestrator stopped",
		"processed", o.pool.Processed(),
		"failed", o.pool.Failed())
}

// Route validates a message and admits it into the queue.
func (o *Orchestrator) Route(source, destination ChannelID, command string, args []state.Value, priority int) error {
	msg := NewMessage(source, destination, command, args, priority)
	if err := msg.Validate(); err != nil {
		return errors.Wrap(err, "Orchestrator", "Route", "validate message")
	}
	if err := o.queue.Enqueue(msg); err != nil {
		return errors.Wrap(err, "Orchestrator", "Route",
			fmt.Sprintf("enqueue %q for %s", command, destination))
	}
	return nil
}

// RouteMessage admits an already-constructed message.
func (o *Orchestrator) RouteMessage(msg Message) error {
	if err := msg.Validate(); err != nil {
		return errors.Wrap(err, "Orchestrator", "RouteMessage", "validate message")
	}
	if err := o.queue.Enqueue(msg); err != nil {
		return errors.Wrap(err, "Orchestrator", "RouteMessage",
			fmt.Sprintf("enqueue %q for %s", msg.Command, msg.Destination))
	}
	return nil
}

// SelectTechnology chooses an execution technology for the given task
// requirements.
func (o *Orchestrator) SelectTechnology(requirements string) Technology {
	return o.selector.Select(requirements)
}

// RegisterComponent adds a component to the routing registry.
func (o *Orchestrator) RegisterComponent(name string, channel ChannelID, capabilities string) error {
	return o.registry.Register(name, channel, capabilities)
}

// Registry exposes the component registry.
func (o *Orchestrator) Registry() *ComponentRegistry { return o.registry }

// ConnectService connects a named service.
func (o *Orchestrator) ConnectService(ctx context.Context, service string) error {
	return o.services.Connect(ctx, service)
}

// DisconnectService disconnects a named service.
func (o *Orchestrator) DisconnectService(ctx context.Context, service string) error {
	return o.services.Disconnect(ctx, service)
}

// IsServiceConnected reports the connection state of a named service.
func (o *Orchestrator) IsServiceConnected(service string) bool {
	return o.services.IsConnected(service)
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	Running       bool            `json:"running"`
	QueueDepth    int             `json:"queueDepth"`
	QueueCapacity int             `json:"queueCapacity"`
	Workers       int             `json:"workers"`
	Processed     int64           `json:"processed"`
	Failed        int64           `json:"failed"`
	Components    []string        `json:"components"`
	Services      map[string]bool `json:"services"`
}

// Status reports the current snapshot.
func (o *Orchestrator) Status() Status {
	o.lifecycleMu.Lock()
	running := o.initialized
	o.lifecycleMu.Unlock()

	return Status{
		Running:       running,
		QueueDepth:    o.queue.Size(),
		QueueCapacity: o.queue.Capacity(),
		Workers:       o.pool.Workers(),
		Processed:     o.pool.Processed(),
		Failed:        o.pool.Failed(),
		Components:    o.registry.Names(),
		Services:      o.services.States(),
	}
}

// Lifecycle events emitted by the host environment.
const (
	LifecycleLoaded = "loaded"
	LifecycleSaved  = "saved"
	LifecycleClosed = "closed"
	LifecycleNew    = "new"
)

// HandleLifecycleEvent reacts to host lifecycle transitions: loading or
// creating a session reconnects the core services, closing disconnects
// them, saving is status-only.
func (o *Orchestrator) HandleLifecycleEvent(ctx context.Context, event string) error {
	switch event {
	case LifecycleLoaded, LifecycleNew:
		for _, service := range CoreServices {
			if err := o.services.Connect(ctx, service); err != nil {
				o.logger.Warn("lifecycle reconnect failed", "event", event, "service", service, "error", err)
			}
		}
		o.emitStatus("lifecycle " + event + ": services connected")
	case LifecycleSaved:
		o.emitStatus("lifecycle saved")
	case LifecycleClosed:
		for _, service := range CoreServices {
			if !o.services.IsConnected(service) {
				continue
			}
			if err := o.services.Disconnect(ctx, service); err != nil {
				o.logger.Warn("lifecycle disconnect failed", "service", service, "error", err)
			}
		}
		o.emitStatus("lifecycle closed: services disconnected")
	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Orchestrator", "HandleLifecycleEvent",
			fmt.Sprintf("lifecycle event %q", event))
	}
	return nil
}

// processMessage is the worker-side handler. It re-validates the
// message and forwards the normalized routing record to the command
// output.
func (o *Orchestrator) processMessage(msg Message) error {
	// Queued messages were validated on admission; re-check before
	// acting on them anyway.
	if err := msg.Validate(); err != nil {
		return errors.Wrap(err, "Orchestrator", "processMessage", "validate message")
	}

	if o.onCommand != nil {
		record := make([]state.Value, 0, 5+len(msg.Args))
		record = append(record,
			state.String(msg.Source.String()),
			state.String(msg.Destination.String()),
			state.String(msg.Command),
			state.Int(int64(msg.Priority)),
			state.Int(msg.Timestamp),
		)
		record = append(record, msg.Args...)
		o.onCommand(record)
	}

	o.logger.Debug("message routed",
		"source", msg.Source.String(),
		"destination", msg.Destination.String(),
		"command", msg.Command,
		"priority", msg.Priority)
	return nil
}

func (o *Orchestrator) workerError(msg Message, err error, consecutive int) {
	o.logger.Error("message processing failed",
		"command", msg.Command,
		"destination", msg.Destination.String(),
		"consecutive", consecutive,
		"error", err)
	if o.onError != nil {
		o.onError(msg, err, consecutive)
	}
}

func (o *Orchestrator) emitStatus(status string) {
	if o.onStatus != nil {
		o.onStatus(status)
	}
}
