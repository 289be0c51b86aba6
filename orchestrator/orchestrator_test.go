package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/maxbridge/config"
	"github.com/c360/maxbridge/errors"
	"github.com/c360/maxbridge/state"
)

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()

	cfg := config.Default().Orchestrator
	cfg.WorkerThreads = 2
	o := New(cfg, nil, nil, opts...)
	require.NoError(t, o.Initialize(context.Background()))
	t.Cleanup(o.Stop)
	return o
}

func TestOrchestratorInitializeRegistersBuiltins(t *testing.T) {
	o := newTestOrchestrator(t)

	assert.Equal(t, []string{"execution", "intelligence", "interaction", "system"},
		o.Registry().Names())

	for _, service := range CoreServices {
		assert.True(t, o.IsServiceConnected(service), "service %s", service)
	}
}

func TestOrchestratorRouteDeliversRecord(t *testing.T) {
	var mu sync.Mutex
	var records [][]state.Value

	o := newTestOrchestrator(t, WithCommandOutput(func(record []state.Value) {
		mu.Lock()
		records = append(records, record)
		mu.Unlock()
	}))

	args := []state.Value{state.String("sinewave"), state.Int(440)}
	require.NoError(t, o.Route(ChannelIntelligence, ChannelExecution, "create_object", args, 3))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	record := records[0]
	mu.Unlock()

	require.Len(t, record, 7)
	src, _ := record[0].AsString()
	dst, _ := record[1].AsString()
	cmd, _ := record[2].AsString()
	prio, _ := record[3].AsInt()
	ts, _ := record[4].AsInt()
	assert.Equal(t, "intelligence", src)
	assert.Equal(t, "execution", dst)
	assert.Equal(t, "create_object", cmd)
	assert.Equal(t, int64(3), prio)
	assert.Greater(t, ts, int64(0))
	assert.True(t, record[5].Equal(state.String("sinewave")))
	assert.True(t, record[6].Equal(state.Int(440)))
}

func TestOrchestratorRouteRejectsInvalid(t *testing.T) {
	o := newTestOrchestrator(t)

	err := o.Route(ChannelIntelligence, ChannelID(42), "cmd", nil, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownChannel)

	err = o.Route(ChannelIntelligence, ChannelExecution, "", nil, 1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestOrchestratorRouteAfterStop(t *testing.T) {
	cfg := config.Default().Orchestrator
	o := New(cfg, nil, nil)
	require.NoError(t, o.Initialize(context.Background()))
	o.Stop()

	err := o.Route(ChannelSystem, ChannelSystem, "ping", nil, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrQueueStopped)
}

func TestOrchestratorStatusSnapshot(t *testing.T) {
	o := newTestOrchestrator(t)

	st := o.Status()
	assert.True(t, st.Running)
	assert.Equal(t, config.DefaultQueueSize, st.QueueCapacity)
	assert.Equal(t, 2, st.Workers)
	assert.Len(t, st.Components, 4)
	assert.True(t, st.Services["max_api"])

	o.Stop()
	st = o.Status()
	assert.False(t, st.Running)
}

func TestOrchestratorLifecycleEvents(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.HandleLifecycleEvent(ctx, LifecycleClosed))
	for _, service := range CoreServices {
		assert.False(t, o.IsServiceConnected(service))
	}

	require.NoError(t, o.HandleLifecycleEvent(ctx, LifecycleLoaded))
	for _, service := range CoreServices {
		assert.True(t, o.IsServiceConnected(service))
	}

	require.NoError(t, o.HandleLifecycleEvent(ctx, LifecycleSaved))

	err := o.HandleLifecycleEvent(ctx, "rebooted")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestOrchestratorSelectTechnology(t *testing.T) {
	o := newTestOrchestrator(t)

	assert.Equal(t, TechnologyNative, o.SelectTechnology("DSP graph update"))
	assert.Equal(t, TechnologyUI, o.SelectTechnology("patch layout"))
	assert.Equal(t, TechnologyScript, o.SelectTechnology("network request"))
	assert.Equal(t, TechnologyOSC, o.SelectTechnology("external hardware"))
}

func TestServiceManagerConnectDisconnect(t *testing.T) {
	m := NewServiceManager(nil, false, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Connect(ctx, "max_api"))
	assert.True(t, m.IsConnected("max_api"))

	require.NoError(t, m.Disconnect(ctx, "max_api"))
	assert.False(t, m.IsConnected("max_api"))

	err := m.Disconnect(ctx, "never_seen")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownService)

	err = m.Connect(ctx, "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

type flakyConnector struct {
	mu       sync.Mutex
	failures int
}

func (c *flakyConnector) Connect(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.ErrNoConnection
	}
	return nil
}

func (c *flakyConnector) Disconnect(context.Context, string) error { return nil }

func TestServiceManagerAutoReconnectRetries(t *testing.T) {
	m := NewServiceManager(&flakyConnector{failures: 2}, true, nil, nil)

	require.NoError(t, m.Connect(context.Background(), "state_sync"))
	assert.True(t, m.IsConnected("state_sync"))
}

func TestServiceManagerNoRetryWithoutAutoReconnect(t *testing.T) {
	m := NewServiceManager(&flakyConnector{failures: 1}, false, nil, nil)

	err := m.Connect(context.Background(), "state_sync")
	require.Error(t, err)
	assert.False(t, m.IsConnected("state_sync"))
}
