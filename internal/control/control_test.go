package control

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/api"
	"warden/internal/orchestrator"
)

type fakeService struct {
	mu      sync.Mutex
	started []string
	stopped []string
	reloads int
	dumps   int
	snaps   map[string]api.StateSnapshot
	err     error
}

func newFakeService() *fakeService {
	return &fakeService{snaps: map[string]api.StateSnapshot{
		"db": {Name: "db", State: api.StateActive, PID: 42, RestartCount: 1},
	}}
}

func (f *fakeService) Start(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	snap, ok := f.snaps[name]
	if !ok {
		return api.NewServiceNotFoundError(name)
	}
	if snap.State == api.StateActive {
		return &api.AlreadyRunningError{Service: name, State: snap.State}
	}
	f.started = append(f.started, name)
	return nil
}

func (f *fakeService) Stop(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snaps[name]; !ok {
		return api.NewServiceNotFoundError(name)
	}
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeService) Restart(ctx context.Context, name string) error {
	return f.Stop(ctx, name)
}

func (f *fakeService) Status(_ context.Context, name string) (api.StateSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[name]
	if !ok {
		return api.StateSnapshot{}, api.NewServiceNotFoundError(name)
	}
	return snap, nil
}

func (f *fakeService) StatusAll(context.Context) ([]api.StateSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.StateSnapshot
	for _, s := range f.snaps {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeService) List(context.Context) ([]api.ServiceInfo, error) {
	return []api.ServiceInfo{{Name: "db", Type: api.TypeNotify, Requires: []string{"network.target"}}}, nil
}

func (f *fakeService) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.err
}

func (f *fakeService) DumpStatus(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dumps++
	return nil
}

func (f *fakeService) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func startServer(t *testing.T, svc Service, stats StatsFunc) *Client {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "control.sock")

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("warden_up 1\n"))
	})
	srv := NewServer(ServerConfig{SocketPath: socket, Service: svc, Stats: stats, Metrics: metrics})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
		_, err := os.Stat(socket)
		assert.True(t, os.IsNotExist(err))
	})

	info, err := os.Stat(socket)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	return NewClient(socket)
}

func TestClient_Status(t *testing.T) {
	c := startServer(t, newFakeService(), nil)
	ctx := context.Background()

	snap, err := c.Status(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, api.StateActive, snap.State)
	assert.Equal(t, 42, snap.PID)
	assert.Equal(t, 1, snap.RestartCount)

	snaps, err := c.StatusAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	infos, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"network.target"}, infos[0].Requires)
}

func TestClient_ErrorMapping(t *testing.T) {
	svc := newFakeService()
	c := startServer(t, svc, nil)
	ctx := context.Background()

	_, err := c.Status(ctx, "ghost")
	assert.True(t, api.IsNotFound(err))
	assert.Contains(t, err.Error(), "ghost")

	err = c.Start(ctx, "db")
	require.True(t, api.IsAlreadyRunning(err))
	var running *api.AlreadyRunningError
	require.ErrorAs(t, err, &running)
	assert.Equal(t, "db", running.Service)
	assert.Equal(t, api.StateActive, running.State)

	svc.fail(api.ErrShuttingDown)
	assert.ErrorIs(t, c.Start(ctx, "db"), api.ErrShuttingDown)

	svc.fail(orchestrator.ErrStopInProgress)
	assert.ErrorContains(t, c.Reload(ctx), "stop of all services in progress")

	svc.fail(&api.CycleError{Path: []string{"a", "b", "a"}})
	assert.ErrorContains(t, c.Reload(ctx), "a -> b -> a")
}

func TestClient_Actions(t *testing.T) {
	svc := newFakeService()
	svc.snaps["web"] = api.StateSnapshot{Name: "web", State: api.StateInactive}
	c := startServer(t, svc, nil)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, "web"))
	require.NoError(t, c.Stop(ctx, "db"))
	require.NoError(t, c.Restart(ctx, "web"))
	require.NoError(t, c.Reload(ctx))
	require.NoError(t, c.DumpStatus(ctx))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []string{"web"}, svc.started)
	assert.Equal(t, []string{"db", "web"}, svc.stopped)
	assert.Equal(t, 1, svc.reloads)
	assert.Equal(t, 1, svc.dumps)
}

func TestClient_ProcessStats(t *testing.T) {
	stats := func(pid int) (*api.ProcessStats, error) {
		if pid != 42 {
			return nil, api.NewNotFoundError("process", "pid")
		}
		return &api.ProcessStats{PID: 42, Name: "postgres", NumThreads: 3}, nil
	}
	c := startServer(t, newFakeService(), stats)
	ctx := context.Background()

	got, err := c.ProcessStats(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "postgres", got.Name)

	_, err = c.ProcessStats(ctx, 7)
	assert.True(t, api.IsNotFound(err))
}

func TestServer_RoutesWithoutStats(t *testing.T) {
	c := startServer(t, newFakeService(), nil)

	_, err := c.ProcessStats(context.Background(), 42)
	assert.Error(t, err)
}

func TestServer_Metrics(t *testing.T) {
	c := startServer(t, newFakeService(), nil)

	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/metrics", nil)
	require.NoError(t, err)
	resp, err := c.http.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StaleSocketReplaced(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "control.sock")
	require.NoError(t, os.WriteFile(socket, nil, 0o600))

	srv := NewServer(ServerConfig{SocketPath: socket, Service: newFakeService()})
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop(context.Background())

	_, err := NewClient(socket).Status(context.Background(), "db")
	assert.NoError(t, err)
}

func TestClient_Unavailable(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))

	_, err := c.StatusAll(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.False(t, api.IsNotFound(err))
}
