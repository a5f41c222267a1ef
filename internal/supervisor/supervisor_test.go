package supervisor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/api"
	"warden/internal/events"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestSupervisor(t *testing.T) (*Supervisor, *events.Queue, *safeBuffer) {
	t.Helper()
	q := events.NewQueue()
	out := &safeBuffer{}
	s := New(Config{
		Sink:        q,
		Environment: map[string]string{"PATH": os.Getenv("PATH")},
		RuntimeDir:  t.TempDir(),
		Output:      out,
	})
	t.Cleanup(func() { _ = s.Close(time.Second) })
	return s, q, out
}

func simple(name, exec string) api.ServiceDefinition {
	return api.ServiceDefinition{Name: name, Type: api.TypeSimple, Exec: exec}
}

// collect reaps until want ProcessExited events were queued and returns
// every event popped along the way.
func collect(t *testing.T, s *Supervisor, q *events.Queue, want int) []events.Event {
	t.Helper()
	var all []events.Event
	exited := 0
	deadline := time.Now().Add(10 * time.Second)
	for exited < want {
		require.True(t, time.Now().Before(deadline), "timed out with %d/%d exits", exited, want)
		s.ReapAll()
		for q.Len() > 0 {
			ev, _ := q.Pop(nil)
			if _, ok := ev.(events.ProcessExited); ok {
				exited++
			}
			all = append(all, ev)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return all
}

func popWithin(t *testing.T, q *events.Queue, d time.Duration) events.Event {
	t.Helper()
	stop := make(chan struct{})
	timer := time.AfterFunc(d, func() { close(stop) })
	defer timer.Stop()
	ev, ok := q.Pop(stop)
	require.True(t, ok, "no event within %s", d)
	return ev
}

func TestConcurrentExitsAreReapedExactlyOnce(t *testing.T) {
	s, q, _ := newTestSupervisor(t)
	const n = 25

	pids := make(map[int]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pid, err := s.Spawn(simple(fmt.Sprintf("svc-%d", i), fmt.Sprintf("exit %d", i%3)), events.Owner{Index: i, Generation: 1})
			assert.NoError(t, err)
			mu.Lock()
			pids[pid] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	all := collect(t, s, q, n)

	started := make(map[int]bool)
	exited := make(map[int]int)
	for _, ev := range all {
		switch e := ev.(type) {
		case events.ProcessStarted:
			started[e.PID] = true
		case events.ProcessExited:
			assert.True(t, started[e.PID], "exit of %d seen before its start", e.PID)
			exited[e.PID]++
		}
	}
	assert.Len(t, exited, n)
	for pid := range pids {
		assert.Equal(t, 1, exited[pid], "pid %d", pid)
	}
	assert.Equal(t, 0, s.Len(), "no handle may survive reaping")

	// Nothing is left to reap.
	assert.Equal(t, 0, s.ReapAll())
}

func TestExitClassification(t *testing.T) {
	tests := []struct {
		name string
		exec string
		want api.ExitStatus
	}{
		{"success", "exit 0", api.ExitStatus{Kind: api.ExitSuccess}},
		{"failure", "exit 3", api.ExitStatus{Kind: api.ExitFailure, Code: 3}},
		{"command not found", "/nonexistent/binary", api.ExitStatus{Kind: api.ExitFailure, Code: 127}},
		{"signal", "kill -KILL $$", api.ExitStatus{Kind: api.ExitAbnormal, Code: -1, Signal: "SIGKILL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, q, _ := newTestSupervisor(t)
			pid, err := s.Spawn(simple("svc", tt.exec), events.Owner{Index: 0, Generation: 1})
			require.NoError(t, err)

			for _, ev := range collect(t, s, q, 1) {
				if exit, ok := ev.(events.ProcessExited); ok {
					assert.Equal(t, pid, exit.PID)
					assert.Equal(t, tt.want, exit.Status)
				}
			}
		})
	}
}

func TestSpawnErrors(t *testing.T) {
	s, q, _ := newTestSupervisor(t)

	def := simple("svc", "true")
	def.WorkingDirectory = filepath.Join(t.TempDir(), "missing")
	_, err := s.Spawn(def, events.Owner{})
	require.Error(t, err)
	assert.True(t, api.IsSpawnError(err))

	_, err = s.Spawn(simple("empty", ""), events.Owner{})
	assert.True(t, api.IsSpawnError(err))

	def = simple("svc", "true")
	def.User = "no-such-user-for-warden-tests"
	_, err = s.Spawn(def, events.Owner{})
	assert.True(t, api.IsSpawnError(err))

	assert.Equal(t, 0, q.Len(), "failed spawns must not report a start")
	assert.Equal(t, 0, s.Len())
}

func TestTerminateReachesProcessGroup(t *testing.T) {
	s, q, _ := newTestSupervisor(t)
	pid, err := s.Spawn(simple("sleepy", "sleep 30 & wait"), events.Owner{Index: 1, Generation: 1})
	require.NoError(t, err)

	require.NoError(t, s.Terminate(pid))

	for _, ev := range collect(t, s, q, 1) {
		if exit, ok := ev.(events.ProcessExited); ok {
			assert.Equal(t, api.ExitAbnormal, exit.Status.Kind)
			assert.Equal(t, "SIGTERM", exit.Status.Signal)
		}
	}

	err = s.Kill(pid)
	assert.True(t, api.IsNotFound(err), "signalling a reaped pid must fail")
}

func TestOutputIsPrefixed(t *testing.T) {
	s, q, out := newTestSupervisor(t)
	_, err := s.Spawn(simple("web", "echo hello; echo oops >&2; printf tail"), events.Owner{})
	require.NoError(t, err)
	collect(t, s, q, 1)
	require.NoError(t, s.Close(time.Second))

	text := out.String()
	assert.Contains(t, text, "[web] hello\n")
	assert.Contains(t, text, "[web] oops\n")
	assert.Contains(t, text, "[web] tail\n")
}

func TestOutputToFileAndNull(t *testing.T) {
	s, q, out := newTestSupervisor(t)
	path := filepath.Join(t.TempDir(), "svc.log")

	def := simple("file", "echo to-file")
	def.Output = path
	_, err := s.Spawn(def, events.Owner{Index: 0})
	require.NoError(t, err)

	def = simple("quiet", "echo nowhere")
	def.Output = OutputNull
	_, err = s.Spawn(def, events.Owner{Index: 1})
	require.NoError(t, err)

	collect(t, s, q, 2)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "to-file\n", string(data))
	assert.NotContains(t, out.String(), "nowhere")
}

func TestEnvironmentMerge(t *testing.T) {
	s := New(Config{
		Sink:        events.NewQueue(),
		Environment: map[string]string{"A": "system", "B": "system"},
	})
	defer s.Close(time.Second)

	env := s.environment(api.ServiceDefinition{Environment: map[string]string{"B": "service", "C": "service"}})
	assert.Equal(t, []string{"A=system", "B=service", "C=service", "PATH=" + DefaultPath}, env)
}

func TestNotifyReadiness(t *testing.T) {
	s, q, _ := newTestSupervisor(t)
	def := api.ServiceDefinition{Name: "notifier", Type: api.TypeNotify, Exec: "sleep 30"}
	owner := events.Owner{Index: 4, Generation: 2}

	pid, err := s.Spawn(def, owner)
	require.NoError(t, err)
	assert.IsType(t, events.ProcessStarted{}, popWithin(t, q, time.Second))

	t.Setenv("NOTIFY_SOCKET", NotifySocketPath(s.runtimeDir, def))
	sent, err := daemon.SdNotify(false, "STATUS=warming up")
	require.NoError(t, err)
	require.True(t, sent)
	sent, err = daemon.SdNotify(false, daemon.SdNotifyReady)
	require.NoError(t, err)
	require.True(t, sent)

	assert.Equal(t, events.Ready{Owner: owner}, popWithin(t, q, 2*time.Second))

	require.NoError(t, s.Kill(pid))
	collect(t, s, q, 1)
}

func TestWatchPIDFile(t *testing.T) {
	s, q, _ := newTestSupervisor(t)
	path := filepath.Join(t.TempDir(), "daemon.pid")
	owner := events.Owner{Index: 2, Generation: 5}

	require.NoError(t, s.WatchPIDFile(owner, path))
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))

	assert.Equal(t, events.PIDFileReady{Owner: owner, PID: 4242}, popWithin(t, q, 2*time.Second))
}

func TestWatchPIDFileCancelled(t *testing.T) {
	s, q, _ := newTestSupervisor(t)
	path := filepath.Join(t.TempDir(), "daemon.pid")
	owner := events.Owner{Index: 2, Generation: 1}

	require.NoError(t, s.WatchPIDFile(owner, path))
	s.CancelReadiness(owner)
	require.NoError(t, s.Close(time.Second))

	_ = os.WriteFile(path, []byte("12"), 0o644)
	assert.Equal(t, 0, q.Len())
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	pid, err := ReadPIDFile(write("ok", " 99 \n"))
	require.NoError(t, err)
	assert.Equal(t, 99, pid)

	_, err = ReadPIDFile(write("garbage", "abc"))
	assert.Error(t, err)
	_, err = ReadPIDFile(write("zero", "0"))
	assert.Error(t, err)
	_, err = ReadPIDFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestAdoptRequiresLiveProcess(t *testing.T) {
	s, _, _ := newTestSupervisor(t)
	err := s.Adopt(os.Getpid(), events.Owner{Index: 1}, "self")
	require.NoError(t, err)

	h, ok := s.Handle(os.Getpid())
	require.True(t, ok)
	assert.True(t, h.Adopted)

	err = s.Adopt(os.Getpid(), events.Owner{Index: 2}, "other")
	assert.Error(t, err)

	err = s.Adopt(1<<22+7, events.Owner{Index: 3}, "ghost")
	assert.Error(t, err)
}

func TestStatsOfSelf(t *testing.T) {
	stats, err := Stats(os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), stats.PID)
	assert.NotEmpty(t, stats.Name)
	assert.False(t, stats.CreatedAt.IsZero())
}

func TestPrefixedWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	w := newPrefixedWriter("svc", &buf)

	_, _ = w.Write([]byte("par"))
	_, _ = w.Write([]byte("tial\nsecond\r\n\nthi"))
	assert.Equal(t, "[svc] partial\n[svc] second\n", buf.String())

	w.Flush()
	assert.True(t, strings.HasSuffix(buf.String(), "[svc] thi\n"))
}

func TestIsReadyMessage(t *testing.T) {
	assert.True(t, IsReadyMessage([]byte("READY=1")))
	assert.True(t, IsReadyMessage([]byte("STATUS=ok\nREADY=1\n")))
	assert.False(t, IsReadyMessage([]byte("READY=0")))
	assert.False(t, IsReadyMessage([]byte("STATUS=READY=1")))
}
