package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/metric"
	"github.com/c360/maxbridge/pkg/retry"
)

// CoreServices are connected automatically when the orchestrator starts.
var CoreServices = []string{"max_api", "state_sync", "context_manager"}

// ServiceConnector establishes a live connection to a named service.
// Transports provide the real implementation; the default connector just
// tracks state.
type ServiceConnector interface {
	Connect(ctx context.Context, service string) error
	Disconnect(ctx context.Context, service string) error
}

// noopConnector tracks connection state without external I/O, for
// services that live in-process.
type noopConnector struct{}

func (noopConnector) Connect(context.Context, string) error    { return nil }
func (noopConnector) Disconnect(context.Context, string) error { return nil }

// ServiceManager tracks the connection state of named services and
// re-establishes dropped connections with backoff when auto-reconnect
// is enabled.
type ServiceManager struct {
	mu        sync.RWMutex
	connected map[string]bool

	connector ServiceConnector
	reconnect bool
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// NewServiceManager creates a manager using the given connector; a nil
// connector tracks state only.
func NewServiceManager(connector ServiceConnector, autoReconnect bool, logger *slog.Logger, metrics *metric.Metrics) *ServiceManager {
	if connector == nil {
		connector = noopConnector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceManager{
		connected: make(map[string]bool),
		connector: connector,
		reconnect: autoReconnect,
		logger:    logger,
		metrics:   metrics,
	}
}

// Connect establishes a connection to the named service. With
// auto-reconnect enabled, transient failures are retried with backoff.
func (m *ServiceManager) Connect(ctx context.Context, service string) error {
	if service == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "ServiceManager", "Connect",
			"service name empty")
	}

	connect := func() error {
		return m.connector.Connect(ctx, service)
	}

	var err error
	if m.reconnect {
		err = retry.Do(ctx, retry.Quick(), connect)
	} else {
		err = connect()
	}
	if err != nil {
		m.setState(service, false)
		return errors.WrapTransient(err, "ServiceManager", "Connect",
			fmt.Sprintf("connect service %q", service))
	}

	m.setState(service, true)
	m.logger.Info("service connected", "service", service)
	return nil
}

// Disconnect tears down the connection to the named service.
func (m *ServiceManager) Disconnect(ctx context.Context, service string) error {
	m.mu.RLock()
	_, known := m.connected[service]
	m.mu.RUnlock()
	if !known {
		return errors.WrapNotFound(errors.ErrUnknownService, "ServiceManager", "Disconnect",
			fmt.Sprintf("service %q", service))
	}

	if err := m.connector.Disconnect(ctx, service); err != nil {
		return errors.WrapTransient(err, "ServiceManager", "Disconnect",
			fmt.Sprintf("disconnect service %q", service))
	}

	m.setState(service, false)
	m.logger.Info("service disconnected", "service", service)
	return nil
}

// IsConnected reports whether the named service is currently connected.
func (m *ServiceManager) IsConnected(service string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected[service]
}

// States returns a copy of the connection-state table.
func (m *ServiceManager) States() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool, len(m.connected))
	for k, v := range m.connected {
		out[k] = v
	}
	return out
}

// Names returns all known service names in sorted order.
func (m *ServiceManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.connected))
	for name := range m.connected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *ServiceManager) setState(service string, connected bool) {
	m.mu.Lock()
	m.connected[service] = connected
	m.mu.Unlock()

	if m.metrics != nil {
		v := 0.0
		if connected {
			v = 1.0
		}
		m.metrics.ServiceConnected.WithLabelValues(service).Set(v)
	}
}
