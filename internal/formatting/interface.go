// Package formatting renders supervisor state for the CLI.
//
// Every command that prints services goes through a Formatter so the
// table, JSON and YAML renderings stay consistent.
package formatting

import (
	"io"
	"os"

	"warden/internal/api"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output
	// Out receives the rendering; stdout when nil.
	Out io.Writer
}

func (o Options) writer() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// Formatter renders supervisor views.
type Formatter interface {
	FormatSnapshots(snaps []api.StateSnapshot) error
	// FormatSnapshot renders one service; stats may be nil.
	FormatSnapshot(snap api.StateSnapshot, stats *api.ProcessStats) error
	FormatDefinitions(infos []api.ServiceInfo) error
	// FormatLevels renders the start order computed by check.
	FormatLevels(levels [][]string) error

	SetOptions(options Options)
	GetOptions() Options
}

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, bool) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, true
	}
	return "", false
}

// New creates the formatter for options.Format. Unknown formats render
// as tables.
func New(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}

// detail is the structured view of a single service.
type detail struct {
	Service api.StateSnapshot `json:"service" yaml:"service"`
	Process *api.ProcessStats `json:"process,omitempty" yaml:"process,omitempty"`
}

type levelView struct {
	Level    int      `json:"level" yaml:"level"`
	Services []string `json:"services" yaml:"services"`
}

func levelViews(levels [][]string) []levelView {
	views := make([]levelView, len(levels))
	for i, l := range levels {
		views[i] = levelView{Level: i, Services: l}
	}
	return views
}
