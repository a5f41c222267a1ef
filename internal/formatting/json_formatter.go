package formatting

import (
	"fmt"

	json "github.com/goccy/go-json"

	"warden/internal/api"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{options: options}
}

func (f *JSONFormatter) FormatSnapshots(snaps []api.StateSnapshot) error {
	if snaps == nil {
		snaps = []api.StateSnapshot{}
	}
	return f.write(snaps)
}

func (f *JSONFormatter) FormatSnapshot(snap api.StateSnapshot, stats *api.ProcessStats) error {
	return f.write(detail{Service: snap, Process: stats})
}

func (f *JSONFormatter) FormatDefinitions(infos []api.ServiceInfo) error {
	if infos == nil {
		infos = []api.ServiceInfo{}
	}
	return f.write(infos)
}

func (f *JSONFormatter) FormatLevels(levels [][]string) error {
	return f.write(levelViews(levels))
}

func (f *JSONFormatter) write(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(f.options.writer(), string(data))
	return err
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) { f.options = options }

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options { return f.options }
