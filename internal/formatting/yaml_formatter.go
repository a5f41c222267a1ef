package formatting

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"warden/internal/api"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

func (f *YAMLFormatter) FormatSnapshots(snaps []api.StateSnapshot) error {
	if snaps == nil {
		snaps = []api.StateSnapshot{}
	}
	return f.write(snaps)
}

func (f *YAMLFormatter) FormatSnapshot(snap api.StateSnapshot, stats *api.ProcessStats) error {
	return f.write(detail{Service: snap, Process: stats})
}

func (f *YAMLFormatter) FormatDefinitions(infos []api.ServiceInfo) error {
	if infos == nil {
		infos = []api.ServiceInfo{}
	}
	return f.write(infos)
}

func (f *YAMLFormatter) FormatLevels(levels [][]string) error {
	return f.write(levelViews(levels))
}

func (f *YAMLFormatter) write(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = f.options.writer().Write(data)
	return err
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) { f.options = options }

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options { return f.options }
