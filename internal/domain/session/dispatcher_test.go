package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu      sync.Mutex
	results []Result
	ch      chan Result
}

func newCollector() *collector {
	return &collector{ch: make(chan Result, 64)}
}

func (c *collector) deliver(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.ch <- r
}

func (c *collector) next(t *testing.T) Result {
	t.Helper()
	select {
	case r := <-c.ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("no result delivered")
		return Result{}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func TestDispatcherDeliversResults(t *testing.T) {
	f := newFixture(t)
	f.jupyter.AddSession("a.ipynb", "kernel-a")
	d := NewDispatcher(f.client, f.manager, nil).WithMetrics(f.metrics)
	defer d.Close()

	s := f.register(t, "a.ipynb")
	c := newCollector()

	reqID, err := d.KernelID(s, c.deliver)
	require.NoError(t, err)
	assert.True(t, id.Valid(reqID.String(), "req"))

	r := c.next(t)
	assert.Equal(t, reqID, r.RequestID)
	assert.Equal(t, s.ID, r.SessionID)
	assert.Equal(t, OpKernelID, r.Op)
	assert.Equal(t, s.Epoch, r.Epoch)
	assert.NoError(t, r.Err)
	assert.True(t, r.Found)
	assert.Equal(t, "kernel-a", r.KernelID)

	_, err = d.ShutdownKernel(s, c.deliver)
	require.NoError(t, err)

	r = c.next(t)
	assert.Equal(t, OpShutdownKernel, r.Op)
	assert.NoError(t, r.Err)
	assert.True(t, r.Found)
	assert.False(t, f.jupyter.HasKernel("kernel-a"))
}

func TestDispatcherPreservesOrderPerSession(t *testing.T) {
	f := newFixture(t)
	f.jupyter.AddSession("a.ipynb", "kernel-a")
	d := NewDispatcher(f.client, f.manager, nil)
	defer d.Close()

	s := f.register(t, "a.ipynb")
	c := newCollector()

	var submitted []id.RequestID
	for i := 0; i < 5; i++ {
		reqID, err := d.KernelID(s, c.deliver)
		require.NoError(t, err)
		submitted = append(submitted, reqID)
	}
	reqID, err := d.ShutdownKernel(s, c.deliver)
	require.NoError(t, err)
	submitted = append(submitted, reqID)

	var delivered []id.RequestID
	for range submitted {
		delivered = append(delivered, c.next(t).RequestID)
	}
	assert.Equal(t, submitted, delivered)
}

func TestDispatcherErrorsAreDelivered(t *testing.T) {
	f := newFixture(t)
	f.jupyter.SetSessionsStatus(500)
	d := NewDispatcher(f.client, f.manager, nil)
	defer d.Close()

	c := newCollector()
	_, err := d.KernelID(f.register(t, "a.ipynb"), c.deliver)
	require.NoError(t, err)

	var srvErr *ServerError
	assert.ErrorAs(t, c.next(t).Err, &srvErr)
}

func TestDispatcherDropsResultFromReplacedServer(t *testing.T) {
	f := newFixture(t)
	f.jupyter.AddSession("a.ipynb", "kernel-a")
	release := f.jupyter.Hold()
	defer release()

	// The manager reports epoch 2 once the server for this root is replaced.
	var current atomic.Uint64
	current.Store(f.server.Epoch)
	epochs := EpochFunc(func(string) (uint64, bool) { return current.Load(), true })

	d := NewDispatcher(f.client, epochs, nil).WithMetrics(f.metrics)
	defer d.Close()

	s := f.register(t, "a.ipynb")
	c := newCollector()

	_, err := d.KernelID(s, c.deliver)
	require.NoError(t, err)

	current.Store(s.Epoch + 1)
	release()

	assert.Eventually(t, func() bool {
		return promtest.ToFloat64(f.metrics.StaleDropped) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, c.count())
}

func TestDispatcherDropsResultAfterShutdown(t *testing.T) {
	f := newFixture(t)
	f.jupyter.AddSession("a.ipynb", "kernel-a")
	release := f.jupyter.Hold()
	defer release()

	d := NewDispatcher(f.client, f.manager, nil).WithMetrics(f.metrics)
	defer d.Close()

	s := f.register(t, "a.ipynb")
	c := newCollector()

	_, err := d.KernelID(s, c.deliver)
	require.NoError(t, err)

	require.NoError(t, f.manager.Shutdown(f.server.RootDir))
	release()

	assert.Eventually(t, func() bool {
		return promtest.ToFloat64(f.metrics.StaleDropped) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, c.count())
}

func TestDispatcherQueueFull(t *testing.T) {
	f := newFixture(t)
	release := f.jupyter.Hold()
	defer release()
	d := NewDispatcher(f.client, f.manager, nil)
	defer d.Close()

	s := f.register(t, "a.ipynb")

	// One job may already be running; the rest fill the queue.
	var lastErr error
	for i := 0; i < queueSize+2; i++ {
		_, lastErr = d.KernelID(s, nil)
	}
	assert.ErrorIs(t, lastErr, ErrQueueFull)

	release()
}

func TestDispatcherForgetAndClose(t *testing.T) {
	f := newFixture(t)
	d := NewDispatcher(f.client, f.manager, nil)

	s := f.register(t, "a.ipynb")
	c := newCollector()

	_, err := d.KernelID(s, c.deliver)
	require.NoError(t, err)
	c.next(t)

	d.Forget(s.ID)
	d.Forget(s.ID)

	// A forgotten session gets a fresh worker.
	_, err = d.KernelID(s, c.deliver)
	require.NoError(t, err)
	c.next(t)

	d.Close()
	d.Close()

	_, err = d.KernelID(s, c.deliver)
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}
