package supervisor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"warden/internal/api"
)

const (
	OutputInherit = "inherit"
	OutputNull    = "null"
)

// output holds the file descriptors of one spawn. child is handed to the
// process (nil means /dev/null); pump is read by the supervisor when the
// output is inherited.
type output struct {
	child *os.File
	pump  *os.File
}

func openOutput(def api.ServiceDefinition) (*output, error) {
	switch strings.TrimSpace(def.Output) {
	case "", OutputInherit:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create output pipe: %w", err)
		}
		return &output{child: w, pump: r}, nil
	case OutputNull:
		return &output{}, nil
	default:
		f, err := os.OpenFile(def.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open output file: %w", err)
		}
		return &output{child: f}, nil
	}
}

// closeChild releases the parent's copy of the child side after start.
func (o *output) closeChild() {
	if o.child != nil {
		_ = o.child.Close()
		o.child = nil
	}
}

func (o *output) closeAll() {
	o.closeChild()
	if o.pump != nil {
		_ = o.pump.Close()
		o.pump = nil
	}
}

// prefixedWriter writes every complete line as "[name] line\n". Partial
// lines are held back until the newline arrives or Flush is called.
type prefixedWriter struct {
	name    string
	writer  io.Writer
	partial []byte
}

func newPrefixedWriter(name string, writer io.Writer) *prefixedWriter {
	return &prefixedWriter{
		name:   name,
		writer: writer,
	}
}

func (pw *prefixedWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	pw.partial = append(pw.partial, p...)
	for {
		i := bytes.IndexByte(pw.partial, '\n')
		if i < 0 {
			break
		}
		line := pw.partial[:i]
		pw.partial = pw.partial[i+1:]
		if len(line) == 0 {
			continue
		}
		if err := pw.writeLine(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes any pending partial line.
func (pw *prefixedWriter) Flush() {
	if len(pw.partial) > 0 {
		_ = pw.writeLine(pw.partial)
		pw.partial = nil
	}
}

func (pw *prefixedWriter) writeLine(line []byte) error {
	_, err := pw.writer.Write([]byte(fmt.Sprintf("[%s] %s\n", pw.name, bytes.TrimRight(line, "\r"))))
	return err
}

// lockedWriter serializes writes from concurrent pumps so lines of
// different services never interleave.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
