package supervisor

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"warden/internal/events"
	"warden/pkg/logging"
)

// ReadyToken is the readiness message notify-type services send. Messages
// are newline separated KEY=VALUE assignments; the token may be one of them.
const ReadyToken = "READY=1"

type notifyListener struct {
	conn *net.UnixConn
	path string
	once sync.Once
}

func listenNotify(path string) (*notifyListener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create notify socket directory: %w", err)
	}
	_ = os.Remove(path)

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on notify socket %s: %w", path, err)
	}
	// Services may drop privileges; the socket must stay writable for them.
	_ = os.Chmod(path, 0o777)
	return &notifyListener{conn: conn, path: path}, nil
}

// serve reads datagrams until the readiness token arrives or the listener
// is closed.
func (n *notifyListener) serve(owner events.Owner, sink events.Sink) {
	defer n.Close()

	buf := make([]byte, 4096)
	for {
		size, _, err := n.conn.ReadFromUnix(buf)
		if err != nil {
			return
		}
		if IsReadyMessage(buf[:size]) {
			logging.Debug("Supervisor", "Readiness token received for %s", owner)
			sink.Push(events.Ready{Owner: owner})
			return
		}
	}
}

// Close is safe to call on a nil listener and more than once.
func (n *notifyListener) Close() {
	if n == nil {
		return
	}
	n.once.Do(func() {
		_ = n.conn.Close()
		_ = os.Remove(n.path)
	})
}

// IsReadyMessage reports whether a notify datagram carries the readiness token.
func IsReadyMessage(msg []byte) bool {
	for _, line := range bytes.Split(msg, []byte("\n")) {
		if string(bytes.TrimSpace(line)) == ReadyToken {
			return true
		}
	}
	return false
}
